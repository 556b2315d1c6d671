package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Remora/internal/domain"
)

// ErrNoScript — не задано тело скрипта.
var ErrNoScript = errors.New("no script: use --script, --file or positional arguments")

// scriptFlags — флаги, описывающие скрипт.
type scriptFlags struct {
	script       string
	file         string
	args         []string
	taskID       string
	isolation    string
	mutexName    string
	mutexTimeout time.Duration
	files        []string
	waitFinish   time.Duration
}

func (f *scriptFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.script, "script", "", "Script body")
	flags.StringVarP(&f.file, "file", "f", "", "Read script body from file")
	flags.StringArrayVar(&f.args, "arg", nil, "Script argument (repeatable)")
	flags.StringVar(&f.taskID, "task-id", "", "Caller task ID passed to the worker")
	flags.StringVar(&f.isolation, "isolation", "none", "Isolation level (none, full)")
	flags.StringVar(&f.mutexName, "mutex", domain.DefaultMutexName, "Isolation mutex name")
	flags.DurationVar(&f.mutexTimeout, "mutex-timeout", 0, "How long to wait for the isolation mutex (0 = forever)")
	flags.StringArrayVar(&f.files, "attach", nil, "File to send with the script, PATH or NAME=PATH (repeatable)")
	flags.DurationVar(&f.waitFinish, "start-wait", 0, "How long StartScript may wait for a short script to finish")
}

// command строит команду запуска. Ticket не заполняется.
func (f *scriptFlags) command(positional []string) (domain.StartScriptCommand, error) {
	body, err := f.body(positional)
	if err != nil {
		return domain.StartScriptCommand{}, err
	}

	isolation, err := parseIsolation(f.isolation)
	if err != nil {
		return domain.StartScriptCommand{}, err
	}

	mutexTimeout := f.mutexTimeout
	if mutexTimeout <= 0 {
		mutexTimeout = domain.NoMutexTimeout
	}

	cmd := domain.StartScriptCommand{
		TaskID:                f.taskID,
		ScriptBody:            body,
		Arguments:             f.args,
		Isolation:             isolation,
		IsolationMutexName:    f.mutexName,
		IsolationMutexTimeout: mutexTimeout,
	}

	for _, attachment := range f.files {
		file, err := readAttachment(attachment)
		if err != nil {
			return domain.StartScriptCommand{}, err
		}
		cmd.Files = append(cmd.Files, file)
	}

	if f.waitFinish > 0 {
		wait := f.waitFinish
		cmd.DurationStartScriptCanWaitForScriptToFinish = &wait
	}

	return cmd, nil
}

func (f *scriptFlags) body(positional []string) (string, error) {
	sources := 0
	for _, set := range []bool{f.script != "", f.file != "", len(positional) > 0} {
		if set {
			sources++
		}
	}
	switch {
	case sources == 0:
		return "", ErrNoScript
	case sources > 1:
		return "", errors.New("use only one of --script, --file or positional arguments")
	}

	switch {
	case f.script != "":
		return f.script, nil
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return "", fmt.Errorf("read script: %w", err)
		}
		return string(data), nil
	default:
		return strings.Join(positional, " "), nil
	}
}

func parseIsolation(s string) (domain.ScriptIsolationLevel, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return domain.IsolationNone, nil
	case "full":
		return domain.IsolationFull, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownIsolation, s)
	}
}

func readAttachment(arg string) (domain.ScriptFile, error) {
	name, path, ok := strings.Cut(arg, "=")
	if !ok {
		path = arg
		name = filepath.Base(arg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ScriptFile{}, fmt.Errorf("read attachment: %w", err)
	}
	return domain.ScriptFile{Name: name, Contents: data}, nil
}
