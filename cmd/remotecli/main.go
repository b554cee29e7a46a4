package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/remotecli/remotecli/cli"
	"github.com/remotecli/remotecli/client"
	"github.com/remotecli/remotecli/keystore"
	"github.com/remotecli/remotecli/lib"
	"github.com/remotecli/remotecli/lib/fingerprint"
	"github.com/remotecli/remotecli/metrics"
	"github.com/remotecli/remotecli/signer"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/ssh"
)

var (
	cfg     = pflag.String("config", defaultConfig(), "Path to config file")
	_       = pflag.String("transport", client.TransportSSH, "Transport: ssh, rexec, rsh or local")
	_       = pflag.String("host", "", "Remote host")
	_       = pflag.Int("port", 0, "Remote port (default depends on the transport)")
	_       = pflag.String("user", "", "Remote user")
	_       = pflag.String("local_user", "", "Local user presented to rsh (default the remote user)")
	_       = pflag.String("key_file", "", "Private key, PEM or raw DER with --key_type. May be a /vault/ or /s3/ path")
	_       = pflag.String("key_type", "", "Type of a raw DER key: rsa, dsa, ecdsa-p256, ecdsa-p384 or ecdsa-p521")
	_       = pflag.Bool("agent", false, "Authenticate with the keys of the ssh-agent on SSH_AUTH_SOCK")
	_       = pflag.String("known_hosts", "", "HCL trust store of host keys")
	_       = pflag.String("revoked_keys", "", "OpenSSH KRL of revoked host keys")
	_       = pflag.StringSlice("kex", nil, "Key exchange methods in order of preference")
	_       = pflag.StringSlice("ciphers", nil, "Ciphers in order of preference")
	_       = pflag.StringSlice("macs", nil, "MACs in order of preference")
	_       = pflag.Duration("timeout", 30*time.Second, "Connect timeout")
	_       = pflag.String("metrics_address", "", "Serve prometheus metrics on this address while running")
	version = pflag.Bool("version", false, "Print version and exit")
)

func defaultConfig() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return path.Join(u.HomeDir, ".remotecli.conf")
}

// configPath drops the default config file when it does not exist.
func configPath() string {
	if pflag.CommandLine.Changed("config") {
		return *cfg
	}
	if _, err := os.Stat(*cfg); err != nil {
		return ""
	}
	return *cfg
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: remotecli [flags] <command>

Commands:
  exec -- <command...>   run a command through the configured transport
  pubkey                 print the authorized_keys line of the configured key
  fingerprint <key>      print the MD5 and Bubble Babble fingerprints of a host key

Flags:
`)
	pflag.PrintDefaults()
}

func main() {
	pflag.Usage = usage
	pflag.Parse()
	if *version {
		fmt.Printf("%s\n", lib.Version)
		os.Exit(0)
	}
	log.SetPrefix("remotecli: ")
	log.SetFlags(0)

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(2)
	}
	var err error
	code := 0
	switch args[0] {
	case "exec":
		code, err = execute(args[1:])
	case "pubkey":
		err = pubkey(os.Stdout)
	case "fingerprint":
		err = printFingerprint(os.Stdout, args[1:])
	default:
		pflag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalln(err)
	}
	os.Exit(code)
}

func serveMetrics(addr string) {
	metrics.Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("metrics server: %v", err)
		}
	}()
}

func execute(args []string) (int, error) {
	c, err := client.ReadConfig(configPath(), pflag.CommandLine)
	if err != nil {
		return 0, err
	}
	keystore.Register(c.Vault(), c.AWS())
	if c.MetricsAddress != "" {
		serveMetrics(c.MetricsAddress)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := client.NewExecutor(c)
	if err != nil {
		return 0, err
	}
	defer e.Cleanup()
	if err := e.Prepare(ctx); err != nil {
		return 0, err
	}
	out, err := cli.ExecArgs(ctx, e, args...)
	if err != nil {
		return 0, err
	}
	printOutput(os.Stdout, out)
	if out.ExitCode == cli.ExitCodeNotSet {
		return 0, nil
	}
	return out.ExitCode, nil
}

func printOutput(w io.Writer, out *cli.Output) {
	if out.ExitCode == cli.ExitCodeNotSet {
		fmt.Fprintln(w, "Exit code: not available")
	} else {
		fmt.Fprintf(w, "Exit code: %d\n", out.ExitCode)
	}
	fmt.Fprintln(w, "Stdout:")
	for _, l := range out.Stdout {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintln(w, "Stderr:")
	for _, l := range out.Stderr {
		fmt.Fprintln(w, l)
	}
}

func pubkey(w io.Writer) error {
	c, err := client.LoadConfig(configPath(), pflag.CommandLine)
	if err != nil {
		return err
	}
	keystore.Register(c.Vault(), c.AWS())
	return writeAuthorizedKey(w, c)
}

func writeAuthorizedKey(w io.Writer, c *client.Config) error {
	k, err := client.LoadKey(c)
	if err != nil {
		return err
	}
	defer k.Wipe()
	s, err := signer.NewSSHSigner(k)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s.AuthorizedKey(c.User))
	return err
}

// printFingerprint accepts a base64 key blob or an authorized_keys line.
func printFingerprint(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("fingerprint: no key given")
	}
	text := strings.Join(args, " ")
	var pub ssh.PublicKey
	var err error
	if strings.Contains(text, " ") {
		pub, _, _, _, err = ssh.ParseAuthorizedKey([]byte(text))
	} else {
		var blob []byte
		if blob, err = base64.StdEncoding.DecodeString(text); err == nil {
			pub, err = ssh.ParsePublicKey(blob)
		}
	}
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	blob := pub.Marshal()
	fmt.Fprintf(w, "Algorithm: %s\n", pub.Type())
	fmt.Fprintf(w, "MD5: %s\n", fingerprint.MD5(blob))
	fmt.Fprintf(w, "Bubble Babble: %s\n", fingerprint.SHA1BubbleBabble(blob))
	return nil
}
