package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-animals/internal/apiclient"
	"github.com/tbourn/go-animals/internal/config"
	"github.com/tbourn/go-animals/internal/sysutil"
)

// errReported means the failure was already printed for the user.
var errReported = errors.New("reported")

// envWithCredentials enables cookie credentials when truthy.
const envWithCredentials = "ANIMALS_WITH_CREDENTIALS"

// cli carries the global flags and the client built from them.
type cli struct {
	out    io.Writer
	errOut io.Writer

	baseURL         string
	configPath      string
	logLevel        string
	withCredentials bool
	headers         []string

	api *apiclient.API
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "animals",
		Short:         "Animals REST service and client",
		Long:          "Serve the animals collection over HTTP, or list, create, update and delete animals on a running service.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.baseURL, "base-url", "", "API base URL (default from config, $"+config.EnvClientBaseURL+", or "+config.DefaultClientBaseURL+")")
	pf.StringVar(&c.configPath, "config", "", "path to a TOML client config file")
	pf.StringVar(&c.logLevel, "log-level", "", "client log level: debug|info|warn|error")
	pf.BoolVar(&c.withCredentials, "with-credentials", sysutil.IsTruthy(os.Getenv(envWithCredentials)), "send and store cookies")
	pf.StringArrayVarP(&c.headers, "header", "H", nil, "extra request header as key=value (repeatable)")

	root.AddCommand(
		newServeCmd(),
		c.newListCmd(),
		c.newGetCmd(),
		c.newCreateCmd(),
		c.newReplaceCmd(),
		c.newPatchCmd(),
		c.newDeleteCmd(),
	)
	return root
}

// client lazily builds the API from config file, environment and flags,
// in increasing precedence.
func (c *cli) client() (*apiclient.API, error) {
	if c.api != nil {
		return c.api, nil
	}
	cfg, err := config.LoadClient(c.configPath)
	if err != nil {
		return nil, err
	}
	hdr, err := parseHeaders(c.headers)
	if err != nil {
		return nil, err
	}

	level := sysutil.FirstNonEmpty(c.logLevel, cfg.LogLevel)
	logger := sysutil.NewLogger(c.errOut, true, "").Level(sysutil.ParseLevel(level))

	c.api = apiclient.New(
		sysutil.FirstNonEmpty(c.baseURL, cfg.BaseURL),
		apiclient.WithObserver(apiclient.LogObserver{Log: logger}),
		apiclient.WithDefaults(apiclient.RequestOptions{Header: hdr, WithCredentials: c.withCredentials}),
	)
	return c.api, nil
}

// parseHeaders accepts "Key=Value" or "Key: Value".
func parseHeaders(in []string) (http.Header, error) {
	if len(in) == 0 {
		return nil, nil
	}
	h := http.Header{}
	for _, kv := range in {
		i := strings.IndexAny(kv, "=:")
		if i <= 0 {
			return nil, fmt.Errorf("invalid header %q, want key=value", kv)
		}
		h.Add(strings.TrimSpace(kv[:i]), strings.TrimSpace(kv[i+1:]))
	}
	return h, nil
}
