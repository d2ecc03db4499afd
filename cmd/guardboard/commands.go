package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"guardboard/internal/auth"
	"guardboard/internal/capture"
	"guardboard/internal/config"
	"guardboard/internal/csvcodec"
	appLog "guardboard/internal/log"
	"guardboard/internal/session"
)

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	out := fs.String("o", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	st, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.OpenFile(*out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return csvcodec.Export(w, st.Snapshot())
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: guardboard import [-config FILE] FILE.csv")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	st, closer, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := session.New(st).ImportCSV(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Printf("guards added: %d, holidays added: %d, duplicates: %d, skipped rows: %d\n",
		res.GuardsAdded, res.HolidaysAdded, res.Duplicates, res.Skipped)
	for _, row := range res.Rows {
		fmt.Printf("  %s\n", row.Error())
	}
	return nil
}

// runHashPassword prompts for credentials and prints the basic_auth block,
// or writes it into the config with -write.
func runHashPassword(args []string) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file updated by -write")
	username := fs.String("user", "", "Username (prompted when empty)")
	write := fs.Bool("write", false, "Store the credentials in the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	if *username == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read username: %w", err)
		}
		*username = strings.TrimSpace(line)
	}
	if *username == "" {
		return errors.New("username cannot be empty")
	}

	password, err := readPassword(in, "Password: ")
	if err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		confirm, err := readPassword(in, "Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return errors.New("passwords do not match")
		}
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if !*write {
		fmt.Printf("basic_auth:\n  username: %s\n  password_hash: %q\n", *username, hash)
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.BasicAuth = &config.BasicAuthConfig{Username: *username, PasswordHash: hash}
	if err := config.Save(*configPath, cfg); err != nil {
		return err
	}
	appLog.Info("basic auth credentials saved", "config", *configPath, "user", *username)
	return nil
}

// readPassword reads without echo from a terminal, or a plain line from
// piped input.
func readPassword(in *bufio.Reader, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func runSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "Base URL of a running guardboard")
	month := fs.String("month", "", "Month to capture (YYYY-MM, default current)")
	out := fs.String("o", "board.png", "Output PNG path")
	user := fs.String("user", "", "Basic auth username")
	width := fs.Int("width", capture.DefaultWidth, "Viewport width")
	height := fs.Int("height", capture.DefaultHeight, "Viewport height")
	timeout := fs.Duration("timeout", capture.DefaultTimeout, "Capture timeout")
	chrome := fs.String("chrome", "", "Chromium binary (default: look up on PATH)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := capture.BoardOptions{
		BaseURL:  *baseURL,
		Month:    *month,
		Username: *user,
		Width:    *width,
		Height:   *height,
		Timeout:  *timeout,
		ExecPath: *chrome,
	}
	if *user != "" {
		pw, err := readPassword(bufio.NewReader(os.Stdin), "Password: ")
		if err != nil {
			return err
		}
		opts.Password = pw
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	png, err := capture.CaptureBoardPNG(ctx, opts)
	if err != nil {
		return err
	}
	if err := capture.WritePNG(*out, png); err != nil {
		return err
	}
	fmt.Println(*out)
	return nil
}
