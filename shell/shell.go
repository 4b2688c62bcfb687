// Package shell implements a line-oriented command interpreter over a mounted
// file system.
package shell

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rzos/fat12fs"
	"github.com/sirupsen/logrus"
)

// Prompt is printed by [Session.Run] before reading each line.
const Prompt = "> "

const helpText = "Commands: help, ls, read <name>, write <name> <text>, delete <name>"

// Session executes commands against a single driver. It isn't safe for
// concurrent use.
type Session struct {
	driver fat12fs.Driver
	output io.Writer
	log    *logrus.Entry
}

// NewSession creates a session that runs commands against `driver` and prints
// their results to `output`. `log` may be nil.
func NewSession(driver fat12fs.Driver, output io.Writer, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		driver: driver,
		output: output,
		log:    log.WithField("component", "shell"),
	}
}

func (session *Session) println(args ...interface{}) {
	fmt.Fprintln(session.output, args...)
}

func (session *Session) printf(format string, args ...interface{}) {
	fmt.Fprintf(session.output, format, args...)
}

// Execute runs a single command line. Blank lines are ignored. Failures are
// printed, never returned.
func (session *Session) Execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	command := strings.ToLower(fields[0])
	args := fields[1:]
	session.log.WithFields(logrus.Fields{
		"command": command,
		"args":    len(args),
	}).Debug("executing")

	switch command {
	case "help":
		session.println(helpText)
	case "ls":
		session.list()
	case "read", "cat":
		if len(args) == 0 {
			session.printf("usage: %s <NAME>\n", command)
			return
		}
		session.read(command, args[0])
	case "write":
		if len(args) == 0 {
			session.println("usage: write <NAME> <TEXT>")
			return
		}
		session.write(args[0], strings.Join(args[1:], " "))
	case "delete", "rm":
		if len(args) == 0 {
			session.printf("usage: %s <NAME>\n", command)
			return
		}
		session.delete(command, args[0])
	default:
		session.printf("unknown command: %s\n", command)
	}
}

func (session *Session) list() {
	entries, err := session.driver.ReadDir()
	if err != nil {
		session.printf("ls error: %s\n", err)
		return
	}
	for _, entry := range entries {
		session.printf("%s\t%d bytes\n", entry.Name(), entry.Size())
	}
}

func (session *Session) read(command, name string) {
	data, err := session.driver.ReadFile(name)
	if err != nil {
		session.printf("%s error: %s\n", command, err)
		return
	}

	if utf8.Valid(data) {
		session.println(string(data))
	} else {
		session.println(hex.EncodeToString(data))
	}
}

func (session *Session) write(name, text string) {
	err := session.driver.WriteFile(name, []byte(text))
	if err != nil {
		session.printf("write error: %s\n", err)
		return
	}
	session.printf("wrote %d bytes\n", len(text))
}

func (session *Session) delete(command, name string) {
	err := session.driver.Delete(name)
	if err != nil {
		session.printf("%s error: %s\n", command, err)
		return
	}
	session.printf("deleted %s\n", name)
}

// Run reads commands from `input` one line at a time until it hits EOF or the
// command "exit", printing [Prompt] before each one.
func (session *Session) Run(input io.Reader) error {
	scanner := bufio.NewScanner(input)
	for {
		session.printf("%s", Prompt)
		if !scanner.Scan() {
			session.println()
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "exit") {
			return nil
		}
		session.Execute(line)
	}
}
