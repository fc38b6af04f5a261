package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/hazyhaar/gradebook/ingest"
	"github.com/hazyhaar/gradebook/jobs"
	"github.com/hazyhaar/gradebook/store"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	failColor  = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
	titleColor = color.New(color.FgCyan)
)

func printResult(w io.Writer, path string, res *ingest.Result) {
	okColor.Fprintf(w, "✓ %s\n", path)
	year := res.ResolvedYearLabel
	if year == "" {
		year = "-"
	}
	fmt.Fprintf(w, "  family %s, %d pages, year %s, %d students affected\n",
		res.Family, res.Pages, year, res.StudentsAffected)
	printDiagnostics(w, res.Diagnostics)
}

func printFailure(w io.Writer, path string, err error) {
	kind := "storage error"
	if ingest.IsDocumentError(err) {
		kind = "unreadable document"
	}
	failColor.Fprintf(w, "✗ %s: %s\n", path, kind)
	fmt.Fprintf(w, "  %v\n", err)
}

func printDiagnostics(w io.Writer, diags []string) {
	if len(diags) == 0 {
		return
	}
	warnColor.Fprintf(w, "  %d diagnostics\n", len(diags))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Diagnostic"})
	table.SetAutoWrapText(false)
	for i, d := range diags {
		table.Append([]string{strconv.Itoa(i + 1), d})
	}
	table.Render()
}

func printJob(w io.Writer, j *jobs.Job) {
	c := warnColor
	switch j.Status {
	case jobs.StatusFinished:
		c = okColor
	case jobs.StatusFailed:
		c = failColor
	}
	titleColor.Fprintf(w, "%s ", j.ID)
	c.Fprintf(w, "%s\n", j.Status)
	fmt.Fprintf(w, "  path %s, attempts %d, updated %s\n", j.Path, j.Attempts, j.UpdatedAt.Format(time.RFC3339))
	if j.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", j.Error)
	}
	if j.Result != nil {
		fmt.Fprintf(w, "  %d students affected, year %q\n", j.Result.StudentsAffected, j.Result.ResolvedYearLabel)
	}
	printDiagnostics(w, j.Diagnostics)
}

func printQueue(w io.Writer, counts map[jobs.Status]int, recent []*jobs.Job) {
	titleColor.Fprintln(w, "Ingestion jobs")
	fmt.Fprintf(w, "  queued %d, running %d, finished %d, failed %d\n",
		counts[jobs.StatusQueued], counts[jobs.StatusRunning],
		counts[jobs.StatusFinished], counts[jobs.StatusFailed])
	if len(recent) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job", "Status", "Attempts", "Students", "Diagnostics", "Path"})
	table.SetAutoWrapText(false)
	for _, j := range recent {
		students := "-"
		if j.Result != nil {
			students = strconv.Itoa(j.Result.StudentsAffected)
		}
		table.Append([]string{
			j.ID,
			string(j.Status),
			strconv.Itoa(j.Attempts),
			students,
			strconv.Itoa(len(j.Diagnostics)),
			j.Path,
		})
	}
	table.Render()
}

func printStudents(w io.Writer, list []store.Student, total int) {
	titleColor.Fprintf(w, "Students (%d of %d)\n", len(list), total)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Id", "Enrollment", "Name", "Class", "Shift", "Year"})
	table.SetAutoWrapText(false)
	for _, s := range list {
		enrollment := s.Enrollment
		if ingest.IsPlaceholder(enrollment) {
			enrollment = warnColor.Sprint(enrollment)
		}
		table.Append([]string{s.ID, enrollment, s.Name, s.ClassLabel, s.Shift, s.AcademicYearID})
	}
	table.Render()
}

func printStudent(w io.Writer, s *store.Student, grades []store.GradeRecord) {
	titleColor.Fprintf(w, "%s %s\n", s.Enrollment, s.Name)
	fmt.Fprintf(w, "  id %s, class %s, shift %s, year %s\n", s.ID, dash(s.ClassLabel), dash(s.Shift), dash(s.AcademicYearID))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Subject", "T1", "T2", "T3", "Total", "Recovery", "Absences", "Status"})
	for _, g := range grades {
		absences := "-"
		if g.Absences != nil {
			absences = strconv.Itoa(*g.Absences)
		}
		table.Append([]string{
			g.Subject, score(g.Period1), score(g.Period2), score(g.Period3),
			score(g.Total), score(g.Recovery), absences, dash(g.Status),
		})
	}
	table.Render()
}

func printYears(w io.Writer, years []store.AcademicYear) {
	titleColor.Fprintf(w, "Academic years (%d)\n", len(years))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Id", "Label", "Current"})
	table.SetAutoWrapText(false)
	for _, y := range years {
		current := ""
		if y.IsCurrent {
			current = okColor.Sprint("yes")
		}
		table.Append([]string{y.ID, y.Label, current})
	}
	table.Render()
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
