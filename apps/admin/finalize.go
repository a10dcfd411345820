package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) finalize(reportID string) error {
	rep, err := cli.reports.Finalize(context.Background(), reportID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "report %s (%s %s) is %s since %s\n",
		rep.ID, rep.Term, rep.AcademicYear, rep.State(), rep.FinalizedAt.Format("2006-01-02 15:04:05"))
	return nil
}
