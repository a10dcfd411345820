package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/trezcool/kadi/core/promotion"
	"github.com/trezcool/kadi/core/report"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	migrator   migrator
	reports    *report.Service
	promotions *promotion.Service
	in         io.Reader
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, up-to VERSION, ...)")
	fmt.Fprintln(cli.out, "  finalize -report ID - finalize a student report")
	fmt.Fprintln(cli.out, "  promote -students IDS -subjects IDS -form FORM -section SECTION -level LEVEL -year YEAR [-yes]")
	fmt.Fprintln(cli.out, "          - promote students into a new class (all or nothing)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	finalizeCmd := flag.NewFlagSet("finalize", flag.ContinueOnError)
	finalizeCmd.SetOutput(cli.out)
	finalizeReport := finalizeCmd.String("report", "", "The id of the report to finalize.")

	promoteCmd := flag.NewFlagSet("promote", flag.ContinueOnError)
	promoteCmd.SetOutput(cli.out)
	promoteStudents := promoteCmd.String("students", "", "Comma separated ids of the students to promote.")
	promoteSubjects := promoteCmd.String("subjects", "", "Comma separated ids of the subjects to enroll them in.")
	promoteForm := promoteCmd.String("form", "", "The target form.")
	promoteSection := promoteCmd.String("section", "", "The target section.")
	promoteLevel := promoteCmd.String("level", "", "The target level (O-Level or A-Level).")
	promoteYear := promoteCmd.String("year", "", "The target academic year.")
	promoteYes := promoteCmd.Bool("yes", false, "Do not ask for confirmation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "finalize":
		if err := finalizeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *finalizeReport == "" {
			finalizeCmd.Usage()
			return errHelp
		}
		return cli.finalize(*finalizeReport)

	case "promote":
		if err := promoteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *promoteStudents == "" || *promoteSubjects == "" {
			promoteCmd.Usage()
			return errHelp
		}
		req := promotion.Request{
			StudentIDs:   splitIDs(*promoteStudents),
			SubjectIDs:   splitIDs(*promoteSubjects),
			Form:         *promoteForm,
			Section:      *promoteSection,
			Level:        *promoteLevel,
			AcademicYear: *promoteYear,
		}
		return cli.promote(req, *promoteYes)

	default:
		cli.printUsage()
		return errHelp
	}
}

func stdinIsTerminal() bool {
	return isTerminalFunc(int(os.Stdin.Fd()))
}
