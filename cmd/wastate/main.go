// Command wastate manages WhatsApp auth-state sessions in a local database.
//
// Usage:
//
//	wastate init             Create (or resume) a session and persist it
//	wastate show             Print a summary of the session's credentials
//	wastate qr <ref>         Render the pairing QR code for a server ref
//	wastate delete           Delete every stored record of the session
package main

import (
	"context"
	"log"
	"os"

	flags "github.com/jessevdk/go-flags"

	waauth "github.com/gwillem/wa-authstore"
)

type globalOpts struct {
	DB      string `long:"db" description:"Path to database file"`
	Session string `short:"s" long:"session" default:"default" description:"Session identifier"`
	Verbose bool   `short:"v" long:"verbose" description:"Enable verbose logging"`

	Init   initCommand   `command:"init" description:"Create (or resume) a session and persist it"`
	Show   showCommand   `command:"show" description:"Print a summary of the session's credentials"`
	QR     qrCommand     `command:"qr" description:"Render the pairing QR code for a server ref"`
	Delete deleteCommand `command:"delete" description:"Delete every stored record of the session"`
}

var opts globalOpts

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = false

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func sessionOpts() []waauth.Option {
	var sopts []waauth.Option
	if opts.DB != "" {
		sopts = append(sopts, waauth.WithDBPath(opts.DB))
	}
	if opts.Verbose {
		sopts = append(sopts, waauth.WithLogger(log.New(os.Stderr, "", log.LstdFlags)))
	}
	return sopts
}

func openSession(ctx context.Context) (*waauth.Session, error) {
	return waauth.Open(ctx, opts.Session, sessionOpts()...)
}
