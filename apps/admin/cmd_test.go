package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/rollcall/rollcall/apps/api/echo"
	"github.com/rollcall/rollcall/core"
	"github.com/rollcall/rollcall/core/attendance"
	"github.com/rollcall/rollcall/core/testutil"
	"github.com/rollcall/rollcall/core/user"
	inmemdb "github.com/rollcall/rollcall/storage/database/inmem"
)

var usrRepo user.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := core.NewTestConfig()
	fence, err := attendance.NewGeofenceConfig(conf.Attendance)
	require.NoError(t, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	usrRepo = inmemdb.NewUserRepository(inmemdb.Open())

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		conf:     conf,
		db:       new(sqlx.DB),
		usrSvc:   user.NewService(usrRepo),
		validate: validate,
		fence:    fence,
		out:      &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkRunErr(t *testing.T, tt cliTest, err error) {
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() expected an error")
		}
		return
	}
	if tt.wantErr != nil {
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	} else if tt.wantErrStr != "" {
		if !strings.Contains(err.Error(), tt.wantErrStr) {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	} else {
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })

	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "lecture_room", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkRunErr(t, tt, cli.run(args))
		})
	}

	t.Run("in-memory engine", func(t *testing.T) {
		cli.db = nil
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no role", args: []string{"adduser", "-name", "Ada", "-email", "ada@example.com"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol", "x"}, wantErrStr: "flag provided but not defined: -lol"},
		{
			name: "unknown role", args: []string{"adduser", "-name", "Ada", "-email", "ada@example.com", "-role", "lol:"},
			wantErrStr: "'allroles' tag",
		},
		{
			name: "invalid email", args: []string{"adduser", "-name", "Ada", "-email", "ada", "-role", user.RoleTeacher},
			wantErrStr: "'email' tag",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkRunErr(t, tt, cli.run(args))
		})
	}

	t.Run("create then update", func(t *testing.T) {
		ctx := context.Background()
		err := cli.run([]string{"admin", "adduser", "-name", "Alice", "-email", "Alice@Example.com", "-role", user.RoleStudent, "-student-number", "S-001"})
		require.NoError(t, err)

		usr, err := usrRepo.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "Alice", usr.Name)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.Equal(t, "S-001", usr.StudentNumber.String)
		assert.True(t, usr.IsActive)
		assert.Contains(t, out.String(), "Alice <alice@example.com> saved")

		err = cli.run([]string{"admin", "adduser", "-name", "Alice B.", "-email", "alice@example.com", "-role", user.RoleStudent + ", " + user.RoleTeacher})
		require.NoError(t, err)

		updated, err := usrRepo.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, updated.ID)
		assert.Equal(t, "Alice B.", updated.Name)
		assert.Equal(t, []string{user.RoleStudent, user.RoleTeacher}, updated.Roles)
		assert.False(t, updated.StudentNumber.Valid)
	})
}

func Test_commandLine_issueToken(t *testing.T) {
	cli, out := setup(t)

	teacher := testutil.CreateUser(t, usrRepo, "Grace Hopper", "grace@example.com", []string{user.RoleTeacher}, true)
	testutil.CreateUser(t, usrRepo, "Carol", "carol@example.com", []string{user.RoleStudent}, false)

	origIsTerminal := isTerminalFunc
	t.Cleanup(func() { isTerminalFunc = origIsTerminal })
	isTerminalFunc = func(fd int) bool { return false }

	tests := []cliTest{
		{name: "no args", args: []string{"issuetoken"}, wantErr: errHelp},
		{name: "unknown user", args: []string{"issuetoken", "-email", "lol@example.com"}, wantErr: user.ErrNotFound},
		{name: "deactivated", args: []string{"issuetoken", "-email", "carol@example.com"}, wantErrStr: "carol@example.com is deactivated"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkRunErr(t, tt, cli.run(args))
		})
	}

	t.Run("piped", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "issuetoken", "-email", " GRACE@example.com"}))

		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
			return []byte(cli.conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, claims.Subject)
		assert.True(t, claims.IsTeacher)
	})

	t.Run("terminal", func(t *testing.T) {
		isTerminalFunc = func(fd int) bool { return true }
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "issuetoken", "-email", "grace@example.com"}))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "Token for Grace Hopper (teacher), valid for 1h0m0s:", lines[0])
	})
}

func Test_commandLine_geofence(t *testing.T) {
	cli, out := setup(t)
	campus := testutil.Campus(cli.conf)

	coord := func(c attendance.GeoCoordinate) []string {
		return []string{
			"-lat", strconv.FormatFloat(c.Lat, 'f', -1, 64),
			"-lon", strconv.FormatFloat(c.Lon, 'f', -1, 64),
		}
	}

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{name: "campus", args: coord(campus), want: "0.0 m from campus: within the 200 m fence"},
		{name: "on the edge", args: coord(testutil.NorthOf(campus, 199)), want: "within the 200 m fence"},
		{name: "outside", args: coord(testutil.NorthOf(campus, 250)), want: "outside the 200 m fence"},
		{name: "invalid", args: []string{"-lat", "91", "-lon", "0"}, wantErr: "invalid coordinate 91, 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(append([]string{"admin", "geofence"}, tt.args...))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}
