package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"rollcall/internal/client"
	"rollcall/internal/course"
)

const dateLayout = "2006-01-02 15:04"

// session returns an authenticated client for the saved login.
func (cli *commandLine) session() (*client.Client, *client.Session, error) {
	s, err := client.LoadSession()
	if err != nil {
		if errors.Is(err, client.ErrNoSession) {
			return nil, nil, errNotLoggedIn
		}
		return nil, nil, err
	}
	return client.New(s.BaseURL, s.Token), s, nil
}

func (cli *commandLine) login(baseURL, email, password string) error {
	c := client.New(baseURL, "")
	tok, err := c.Login(cli.ctx, email, password)
	if err != nil {
		return err
	}
	role, err := client.RoleFromToken(tok)
	if err != nil {
		return err
	}
	s := &client.Session{Token: tok, Email: email, Role: role, BaseURL: c.BaseURL}
	if err := s.Save(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(cli.out, "Logged in as %s (%s)\n", email, role)
	return nil
}

func (cli *commandLine) logout() error {
	c, _, err := cli.session()
	if err != nil {
		return err
	}
	if err := c.Logout(cli.ctx); err != nil {
		fmt.Fprintf(cli.errOut, "warning: server logout failed: %v\n", err)
	}
	if err := client.ClearSession(); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out")
	return nil
}

func (cli *commandLine) register(baseURL string, u client.NewUser) error {
	if err := client.New(baseURL, "").Register(cli.ctx, u); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Registered %s as %s\n", u.Email, u.Role)
	return nil
}

func (cli *commandLine) createUser(u client.NewUser) error {
	c, _, err := cli.session()
	if err != nil {
		return err
	}
	if err := c.CreateUser(cli.ctx, u); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Created %s as %s\n", u.Email, u.Role)
	return nil
}

func (cli *commandLine) whoami() error {
	_, s, err := cli.session()
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (%s) at %s\n", s.Email, s.Role, s.BaseURL)
	return nil
}

func (cli *commandLine) courses() error {
	c, s, err := cli.session()
	if err != nil {
		return err
	}
	views, err := c.Courses(cli.ctx)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Fprintln(cli.out, "No courses.")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	if s.Role == "teacher" {
		fmt.Fprintln(w, "ID\tCODE\tNAME\tSCHEDULE\tSTUDENTS\tATTENDANCE")
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", v.ID, v.Code, v.Name, v.Schedule, len(v.StudentEmails), activeLabel(v))
		}
	} else {
		fmt.Fprintln(w, "ID\tCODE\tNAME\tSCHEDULE\tATTENDANCE\tSUBMITTED")
		for _, v := range views {
			submitted := "-"
			if v.HasActiveAttendance && v.AlreadyAttended != nil {
				submitted = yesNo(*v.AlreadyAttended)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", v.ID, v.Code, v.Name, v.Schedule, activeLabel(v), submitted)
		}
	}
	return w.Flush()
}

func activeLabel(v course.View) string {
	switch {
	case !v.HasActiveAttendance:
		return "closed"
	case v.ActiveAttendanceCode != "":
		return "open (" + v.ActiveAttendanceCode + ")"
	default:
		return "open"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (cli *commandLine) createCourse(name, code, schedule string) error {
	c, _, err := cli.session()
	if err != nil {
		return err
	}
	crs, err := c.CreateCourse(cli.ctx, course.CreateInput{Name: name, Code: code, Schedule: schedule})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Created course %s (%s)\n", crs.Code, crs.ID)
	return nil
}

func (cli *commandLine) addStudents(courseID string, emails []string) error {
	c, _, err := cli.session()
	if err != nil {
		return err
	}
	added, err := c.AddStudents(cli.ctx, courseID, emails)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Enrolled %d new student(s)\n", len(added))
	for _, e := range added {
		fmt.Fprintf(cli.out, "  %s\n", e)
	}
	return nil
}

func (cli *commandLine) start(courseID string) error {
	c, _, err := cli.session()
	if err != nil {
		return err
	}
	code, err := c.StartAttendance(cli.ctx, courseID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Attendance open. Code: %s\n", code)
	return nil
}

func (cli *commandLine) end(courseID string) error {
	c, _, err := cli.session()
	if err != nil {
		return err
	}
	msg, err := c.EndAttendance(cli.ctx, courseID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}

func (cli *commandLine) submit(courseID, code string) error {
	c, _, err := cli.session()
	if err != nil {
		return err
	}
	if err := c.SubmitAttendance(cli.ctx, courseID, code); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Attendance submitted")
	return nil
}

func (cli *commandLine) history(courseID string) error {
	c, s, err := cli.session()
	if err != nil {
		return err
	}
	entries, err := c.History(cli.ctx, courseID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cli.out, "No attendance history.")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	if s.Role == "teacher" {
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d present\n", e.Date.Local().Format(dateLayout), len(e.Students))
			for _, st := range e.Students {
				fmt.Fprintf(w, "  %s\t%s\n", st.FullName, st.Email)
			}
		}
	} else {
		fmt.Fprintln(w, "DATE\tATTENDED")
		for _, e := range entries {
			attended := e.Attended != nil && *e.Attended
			fmt.Fprintf(w, "%s\t%s\n", e.Date.Local().Format(dateLayout), yesNo(attended))
		}
	}
	return w.Flush()
}
