package main

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-animals/internal/apiclient"
	"github.com/tbourn/go-animals/internal/sysutil"
	"github.com/tbourn/go-animals/internal/view"
)

var (
	errorColor   = color.New(color.FgRed)
	loadingColor = color.New(color.FgYellow)
	emptyColor   = color.New(color.Faint)
)

func (c *cli) logger() zerolog.Logger {
	if c.api != nil {
		if lo, ok := c.api.Observer.(apiclient.LogObserver); ok {
			return lo.Log
		}
	}
	return sysutil.NewLogger(c.errOut, true, "").Level(sysutil.ParseLevel(c.logLevel))
}

func renderLoading(w io.Writer) {
	loadingColor.Fprintln(w, "Loading animals...")
}

// renderState draws the list view. An errored state prints the message and
// yields errReported.
func (c *cli) renderState(s view.LoadState) error {
	switch s.Status {
	case view.StatusErrored:
		errorColor.Fprintln(c.errOut, s.ErrorMessage)
		return errReported
	case view.StatusLoaded:
		if len(s.Items) == 0 {
			emptyColor.Fprintln(c.out, "No animals found.")
			return nil
		}
		renderTable(c.out, s.Items)
	}
	return nil
}

func (c *cli) renderOne(env apiclient.Envelope[apiclient.Animal]) error {
	if env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = "No data in response."
		}
		emptyColor.Fprintln(c.out, msg)
		return nil
	}
	renderTable(c.out, []apiclient.Animal{*env.Data})
	return nil
}

func (c *cli) reportError(err error) error {
	errorColor.Fprintln(c.errOut, err.Error())
	return errReported
}

func renderTable(w io.Writer, items []apiclient.Animal) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Type", "Created At"})
	for _, a := range items {
		table.Append([]string{idString(a.ID), a.Name, a.Type, deref(a.CreatedAt)})
	}
	table.Render()
}

func idString(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
