package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/user"
	"github.com/rollcall/rollcall/storage/database"
)

var (
	gooseRunFunc   = database.RunMigrations // mockable
	isTerminalFunc = term.IsTerminal        // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB // nil with the in-memory engine
	usrSvc   user.Service
	validate *validator.Validate
	fence    attendance.GeofenceConfig
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                               - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL -role ROLE [-student-number N] - update or create a user")
	fmt.Fprintln(cli.out, "  issuetoken -email EMAIL                              - print an API token for the user")
	fmt.Fprintln(cli.out, "  geofence -lat LAT -lon LON                           - check a point against the campus fence")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email, users are matched on it.")
	addUserRoles := addUserCmd.String("role", "", "Comma separated roles: "+strings.Join(user.AllRoles, ", "))
	addUserStudentNumber := addUserCmd.String("student-number", "", "The student number, for students.")

	issueTokenCmd := flag.NewFlagSet("issuetoken", flag.ContinueOnError)
	issueTokenEmail := issueTokenCmd.String("email", "", "The user's email.")

	geofenceCmd := flag.NewFlagSet("geofence", flag.ContinueOnError)
	geofenceLat := geofenceCmd.Float64("lat", 0, "Latitude in decimal degrees.")
	geofenceLon := geofenceCmd.Float64("lon", 0, "Longitude in decimal degrees.")

	for _, fs := range []*flag.FlagSet{addUserCmd, issueTokenCmd, geofenceCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserRoles == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Name:          *addUserName,
			Email:         *addUserEmail,
			StudentNumber: *addUserStudentNumber,
			Roles:         splitRoles(*addUserRoles),
		})
	case "issuetoken":
		if err := issueTokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *issueTokenEmail == "" {
			issueTokenCmd.Usage()
			return errHelp
		}
		return cli.issueToken(*issueTokenEmail, isTerminalFunc(int(os.Stdout.Fd())))
	case "geofence":
		if err := geofenceCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.checkGeofence(attendance.GeoCoordinate{Lat: *geofenceLat, Lon: *geofenceLon})
	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(s string) []string {
	roles := make([]string, 0)
	for _, role := range strings.Split(s, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
