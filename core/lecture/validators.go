package lecture

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
)

var (
	timeOfDayTag  = "timeofday"
	timeOfDayText = "must be a time of day formatted as HH:MM"

	timeSlotTag  = "timeslot"
	timeSlotText = "must be a time slot formatted as HH:MM - HH:MM"

	weekdayTag  = "weekday"
	weekdayText = "must be a day of the week"
)

// InitValidators registers the lecture validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(timeOfDayTag, timeOfDayValidation)
	core.RegisterCustomTranslation(validate, translator, timeOfDayTag, timeOfDayText)

	_ = validate.RegisterValidation(timeSlotTag, timeSlotValidation)
	core.RegisterCustomTranslation(validate, translator, timeSlotTag, timeSlotText)

	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	core.RegisterCustomTranslation(validate, translator, weekdayTag, weekdayText)
}

// Custom Validators

func timeOfDayValidation(fl validator.FieldLevel) bool {
	_, err := attendance.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

func timeSlotValidation(fl validator.FieldLevel) bool {
	_, err := attendance.ParseTimeSlot(fl.Field().String())
	return err == nil
}

func weekdayValidation(fl validator.FieldLevel) bool {
	_, err := attendance.ParseWeekday(fl.Field().String())
	return err == nil
}
