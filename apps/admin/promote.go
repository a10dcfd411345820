package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/kadi/core/promotion"
)

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (cli *commandLine) confirm(question string) (bool, error) {
	if !stdinIsTerminal() {
		return false, errors.New("not a terminal: pass -yes to confirm")
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && answer == "" {
		return false, errors.Wrap(err, "reading confirmation")
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func (cli *commandLine) promote(req promotion.Request, yes bool) error {
	if !yes {
		q := fmt.Sprintf("Promote %d student(s) to %s %s (%s, %s)?",
			len(req.StudentIDs), req.Form, req.Section, req.Level, req.AcademicYear)
		ok, err := cli.confirm(q)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	res, err := cli.promotions.Promote(context.Background(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "promoted %d student(s): %d enrollment(s) created, %d skipped\n",
		res.Promoted, res.Enrolled, res.Skipped)
	return nil
}
