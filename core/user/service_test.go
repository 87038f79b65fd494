package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/testutil"
	"github.com/rollcall/rollcall/core/user"
	inmemdb "github.com/rollcall/rollcall/storage/database/inmem"
)

func setup(t *testing.T) (user.Service, user.Repository) {
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	return user.NewService(repo), repo
}

func TestNewUser_Validate(t *testing.T) {
	svc, repo := setup(t)
	testutil.CreateUser(t, repo, "Ada", "ada@example.com", []string{user.RoleTeacher}, true)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	tests := []struct {
		name       string
		nu         user.NewUser
		wantFields map[string]string
	}{
		{
			name: "valid",
			nu:   user.NewUser{Name: "Alice", Email: " Alice@Example.com ", StudentNumber: "S-001", Roles: []string{user.RoleStudent}},
		},
		{
			name: "missing fields",
			nu:   user.NewUser{},
			wantFields: map[string]string{
				"name":  "this field cannot be blank",
				"email": "this field is required",
				"roles": "this field is required",
			},
		},
		{
			name:       "unknown role",
			nu:         user.NewUser{Name: "Bob", Email: "bob@example.com", Roles: []string{"janitor:"}},
			wantFields: map[string]string{"roles": "invalid roles"},
		},
		{
			name:       "email taken",
			nu:         user.NewUser{Name: "Ada", Email: "ADA@example.com", Roles: []string{user.RoleTeacher}},
			wantFields: map[string]string{"email": user.ErrEmailExists.Error()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(context.Background(), validate, svc)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			fields, ok := core.FieldErrors(err, translator)
			require.True(t, ok, "%v", err)
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{Name: " Alice ", Email: "Alice@Example.com", StudentNumber: "S-001", Roles: []string{user.RoleStudent}})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "Alice", usr.Name)
	assert.Equal(t, "alice@example.com", usr.Email)
	assert.Equal(t, "S-001", usr.StudentNumber.String)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsStudent())
	assert.False(t, usr.IsTeacher())

	got, err := svc.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	_, err = svc.GetByID(ctx, "missing")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_UpdateOrCreate(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	created, err := svc.UpdateOrCreate(ctx, user.NewUser{Name: "Alice", Email: "alice@example.com", Roles: []string{user.RoleStudent}})
	require.NoError(t, err)

	updated, err := svc.UpdateOrCreate(ctx, user.NewUser{Name: "Alice B.", Email: "alice@example.com", Roles: []string{user.RoleTeacher}})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Alice B.", updated.Name)
	assert.Equal(t, []string{user.RoleTeacher}, updated.Roles)
	assert.False(t, updated.StudentNumber.Valid)
}

func TestService_Filter(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	grace := testutil.CreateUser(t, repo, "Grace", "grace@example.com", []string{user.RoleTeacher}, true)
	bob := testutil.CreateUser(t, repo, "Bob", "bob@example.com", []string{user.RoleStudent}, true, "S-002")
	alice := testutil.CreateUser(t, repo, "Alice", "alice@example.com", []string{user.RoleStudent}, true, "S-001")
	carol := testutil.CreateUser(t, repo, "Carol", "carol@example.com", []string{user.RoleStudent}, false, "S-003")
	owner := testutil.CreateUser(t, repo, "Olga", "olga@example.com", []string{user.RoleAdminOwner}, true)

	active, inactive := true, false
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []user.User
	}{
		{name: "all", want: []user.User{alice, bob, carol, grace, owner}},
		{name: "students", filter: user.QueryFilter{Roles: []string{user.RoleStudent}}, want: []user.User{alice, bob, carol}},
		{name: "active students", filter: user.QueryFilter{Roles: []string{user.RoleStudent}, IsActive: &active}, want: []user.User{alice, bob}},
		{name: "inactive", filter: user.QueryFilter{IsActive: &inactive}, want: []user.User{carol}},
		{name: "admins by prefix", filter: user.QueryFilter{Roles: []string{user.RoleAdmin}}, want: []user.User{owner}},
		{name: "teachers or admins", filter: user.QueryFilter{Roles: []string{user.RoleTeacher, user.RoleAdmin}}, want: []user.User{grace, owner}},
		{name: "search student number", filter: user.QueryFilter{Search: " s-002 "}, want: []user.User{bob}},
		{name: "search name", filter: user.QueryFilter{Search: "ali"}, want: []user.User{alice}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := svc.Filter(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, users)
		})
	}
}

func TestService_SetActive(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Alice", "alice@example.com", []string{user.RoleStudent}, true)

	usr, err := svc.SetActive(ctx, usr, false)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)

	require.NoError(t, svc.Delete(ctx, usr.ID))
	_, err = svc.SetActive(ctx, usr, true)
	assert.True(t, errors.Is(err, user.ErrNotFound))
}
