package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"rollcall/internal/client"
)

const defaultBaseURL = "http://localhost:8000"

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp          = errors.New("help provided")
	errEmptyPassword = errors.New("password must not be empty")
	errNotLoggedIn   = errors.New("not logged in, run: rollcall login -email EMAIL")
)

type commandLine struct {
	ctx    context.Context
	out    io.Writer
	errOut io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.errOut, "Usage:")
	fmt.Fprintln(cli.errOut, "  login -email EMAIL [-url URL]                      - log in (password prompted)")
	fmt.Fprintln(cli.errOut, "  logout                                             - revoke the token and forget it")
	fmt.Fprintln(cli.errOut, "  register -email EMAIL -name NAME -role ROLE [-url URL] - create an account")
	fmt.Fprintln(cli.errOut, "  whoami                                             - show the logged in account")
	fmt.Fprintln(cli.errOut, "  courses                                            - list your courses")
	fmt.Fprintln(cli.errOut, "  create-course -name NAME -code CODE [-schedule S]  - add a course (teacher)")
	fmt.Fprintln(cli.errOut, "  add-students -course ID EMAIL...                   - enroll students (teacher)")
	fmt.Fprintln(cli.errOut, "  create-user -email EMAIL -name NAME -role ROLE     - create an account (teacher)")
	fmt.Fprintln(cli.errOut, "  start -course ID                                   - open attendance (teacher)")
	fmt.Fprintln(cli.errOut, "  end -course ID                                     - close attendance (teacher)")
	fmt.Fprintln(cli.errOut, "  submit -course ID -code CODE                       - check in (student)")
	fmt.Fprintln(cli.errOut, "  history -course ID                                 - past attendance")
}

func (cli *commandLine) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.errOut)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	cmd, rest := args[1], args[2:]

	switch cmd {
	case "login":
		fs := cli.flags(cmd)
		email := fs.String("email", "", "Account email. The password will be prompted next.")
		baseURL := fs.String("url", envBaseURL(), "API base URL.")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *email == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		return cli.login(*baseURL, *email, pwd)

	case "logout":
		return cli.logout()

	case "register", "create-user":
		fs := cli.flags(cmd)
		email := fs.String("email", "", "Account email. The password will be prompted next.")
		name := fs.String("name", "", "Full name.")
		role := fs.String("role", "student", "teacher or student.")
		baseURL := fs.String("url", envBaseURL(), "API base URL (register only).")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *email == "" || *name == "" {
			fs.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		u := client.NewUser{Email: *email, Password: pwd, FullName: *name, Role: *role}
		if cmd == "register" {
			return cli.register(*baseURL, u)
		}
		return cli.createUser(u)

	case "whoami":
		return cli.whoami()

	case "courses":
		return cli.courses()

	case "create-course":
		fs := cli.flags(cmd)
		name := fs.String("name", "", "Course name.")
		code := fs.String("code", "", "Unique course code.")
		schedule := fs.String("schedule", "", "Free-form schedule.")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *name == "" || *code == "" {
			fs.Usage()
			return errHelp
		}
		return cli.createCourse(*name, *code, *schedule)

	case "add-students":
		fs := cli.flags(cmd)
		courseID := fs.String("course", "", "Course id.")
		if err := parse(fs, rest); err != nil {
			return err
		}
		emails := splitEmails(fs.Args())
		if *courseID == "" || len(emails) == 0 {
			fs.Usage()
			return errHelp
		}
		return cli.addStudents(*courseID, emails)

	case "start", "end", "history":
		fs := cli.flags(cmd)
		courseID := fs.String("course", "", "Course id.")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *courseID == "" {
			fs.Usage()
			return errHelp
		}
		switch cmd {
		case "start":
			return cli.start(*courseID)
		case "end":
			return cli.end(*courseID)
		default:
			return cli.history(*courseID)
		}

	case "submit":
		fs := cli.flags(cmd)
		courseID := fs.String("course", "", "Course id.")
		code := fs.String("code", "", "Join code shown by the teacher.")
		if err := parse(fs, rest); err != nil {
			return err
		}
		if *courseID == "" || *code == "" {
			fs.Usage()
			return errHelp
		}
		return cli.submit(*courseID, *code)

	default:
		cli.printUsage()
		return errHelp
	}
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.errOut, "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.errOut)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPassword
	}
	return string(pwd), nil
}

func envBaseURL() string {
	if v := os.Getenv("ROLLCALL_URL"); v != "" {
		return v
	}
	return defaultBaseURL
}

// splitEmails accepts space or comma separated addresses.
func splitEmails(args []string) []string {
	var out []string
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
