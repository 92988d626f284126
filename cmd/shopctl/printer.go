package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jrsteele09/go-shop-console/gateway"
	"github.com/jrsteele09/go-shop-console/session"
)

// printer formats command output
type printer struct {
	out     io.Writer
	success *color.Color
	warn    *color.Color
	fail    *color.Color
	label   *color.Color
}

func newPrinter(out io.Writer, useColors bool) *printer {
	p := &printer{
		out:     out,
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
		label:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.success, p.warn, p.fail, p.label} {
		if useColors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) Successf(format string, args ...any) {
	p.success.Fprintf(p.out, "✓ "+format+"\n", args...)
}

func (p *printer) Warnf(format string, args ...any) {
	p.warn.Fprintf(p.out, "! "+format+"\n", args...)
}

func (p *printer) Failf(format string, args ...any) {
	p.fail.Fprintf(p.out, "✗ "+format+"\n", args...)
}

func (p *printer) Field(name, value string) {
	fmt.Fprintf(p.out, "%s %s\n", p.label.Sprintf("%-8s", name+":"), value)
}

func (p *printer) User(u *session.User) {
	p.Field("name", u.DisplayName())
	p.Field("email", u.Email)
	p.Field("role", string(u.Role))
}

// GatewayError prints a gateway error with its per-field details.
func (p *printer) GatewayError(err *gateway.Error) {
	p.Failf("%s", err.Message)
	for field, msg := range err.Fields {
		p.fail.Fprintf(p.out, "  %s: %s\n", field, msg)
	}
}
