// proctorctl is the control CLI for proctord.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"proctord/internal/config"
	"proctord/internal/ipc"
	"proctord/internal/session"
)

var (
	configPath = flag.String("config", "", "path to config file")
	socketPath = flag.String("socket", "", "daemon socket path (overrides config)")
	asJSON     = flag.Bool("json", false, "print raw JSON responses")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	switch cmd {
	case "status":
		cmdStatus()
	case "tests":
		cmdTests()
	case "start":
		requireArgs(args, 1, "proctorctl start <test-id>")
		cmdStart(args[0])
	case "answer":
		requireArgs(args, 2, "proctorctl answer <question-index> <option>")
		cmdAnswer(parseIndex(args[0]), args[1])
	case "flag":
		requireArgs(args, 1, "proctorctl flag <question-index>")
		cmdFlag(parseIndex(args[0]))
	case "goto":
		requireArgs(args, 1, "proctorctl goto <question-index>")
		cmdGoto(parseIndex(args[0]))
	case "snapshot":
		cmdSnapshot()
	case "submit":
		cmdSubmit()
	case "terminate":
		reason := ""
		if len(args) > 0 {
			reason = strings.Join(args, " ")
		}
		cmdTerminate(reason)
	case "reset":
		cmdReset()
	case "history":
		testID := ""
		if len(args) > 0 {
			testID = args[0]
		}
		cmdHistory(testID)
	case "violations":
		requireArgs(args, 1, "proctorctl violations <attempt-id>")
		cmdViolations(args[0])
	case "cert":
		requireArgs(args, 1, "proctorctl cert <recipient>")
		cmdCert(strings.Join(args, " "))
	case "verify":
		requireArgs(args, 1, "proctorctl verify <attempt-id>")
		cmdVerify(args[0])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `proctorctl - Control utility for proctord

Usage: proctorctl [options] <command> [args]

Commands:
  status                    Show daemon and session status
  tests                     List available tests
  start <test-id>           Start a proctored attempt
  answer <index> <option>   Answer a question
  flag <index>              Toggle a review flag on a question
  goto <index>              Move to a question
  snapshot                  Show the current session snapshot
  submit                    Submit the running attempt for scoring
  terminate [reason]        Force-terminate the running attempt
  reset                     Return a finished session to idle
  history [test-id]         Show finished attempts
  violations <attempt-id>   Show the violation audit log
  cert <recipient>          Build a certificate for the last attempt
  verify <attempt-id>       Verify a stored attempt record
  help                      Show this help message

Options:
  -config <path>   Path to config file (default: ~/.proctord/config.toml)
  -socket <path>   Daemon socket path (overrides config)
  -json            Print raw JSON responses`)
}

func requireArgs(args []string, n int, usageLine string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", usageLine)
		os.Exit(1)
	}
}

func parseIndex(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		fmt.Fprintf(os.Stderr, "Invalid question index: %s\n", s)
		os.Exit(1)
	}
	return n
}

func connect() *ipc.Client {
	socket := *socketPath
	if socket == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		socket = cfg.IPC.SocketPath
	}

	client := ipc.NewClient(ipc.DefaultClientConfig(socket))
	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to daemon: %v\n", err)
		os.Exit(1)
	}
	return client
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdStatus() {
	client := connect()
	defer client.Close()

	resp, err := client.Status()
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}

	fmt.Println("=== proctord Status ===")
	fmt.Printf("Version:       %s\n", resp.Version)
	fmt.Printf("Uptime:        %s\n", resp.Uptime)
	fmt.Printf("Session state: %s\n", resp.SessionState)
	fmt.Printf("Loaded tests:  %d\n", resp.LoadedTests)
	if len(resp.DegradedSensors) > 0 {
		fmt.Println("Degraded sensors:")
		for _, s := range resp.DegradedSensors {
			fmt.Printf("  - %s\n", s)
		}
	}
}

func cmdTests() {
	client := connect()
	defer client.Close()

	tests, err := client.ListTests()
	if err != nil {
		fatal(err)
	}
	if printJSON(tests) {
		return
	}

	if len(tests) == 0 {
		fmt.Println("No tests loaded.")
		return
	}

	fmt.Printf("%-16s %-30s %-10s %-10s %s\n", "ID", "Title", "Duration", "Pass %", "Questions")
	fmt.Println(strings.Repeat("-", 78))
	for _, t := range tests {
		fmt.Printf("%-16s %-30s %-10s %-10d %d\n",
			t.ID, t.Title, (time.Duration(t.DurationSeconds) * time.Second).String(),
			t.PassingThreshold, t.QuestionCount)
	}
}

func cmdStart(testID string) {
	client := connect()
	defer client.Close()

	resp, err := client.StartAttempt(testID)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}

	fmt.Printf("Attempt started: %s\n", resp.AttemptID)
	printSnapshot(resp.Snapshot)
}

func cmdAnswer(index int, option string) {
	client := connect()
	defer client.Close()

	resp, err := client.Answer(index, option)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}
	printSnapshot(resp.Snapshot)
}

func cmdFlag(index int) {
	client := connect()
	defer client.Close()

	resp, err := client.Flag(index)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}
	printSnapshot(resp.Snapshot)
}

func cmdGoto(index int) {
	client := connect()
	defer client.Close()

	resp, err := client.Navigate(index)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}
	printSnapshot(resp.Snapshot)
}

func cmdSnapshot() {
	client := connect()
	defer client.Close()

	resp, err := client.Snapshot()
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}
	printSnapshot(resp.Snapshot)
}

func cmdSubmit() {
	client := connect()
	defer client.Close()

	resp, err := client.Submit()
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}
	printResult(resp)
}

func cmdTerminate(reason string) {
	client := connect()
	defer client.Close()

	resp, err := client.Terminate(reason)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}
	printResult(resp)
}

func cmdReset() {
	client := connect()
	defer client.Close()

	if _, err := client.Reset(); err != nil {
		fatal(err)
	}
	fmt.Println("Session reset.")
}

func cmdHistory(testID string) {
	client := connect()
	defer client.Close()

	resp, err := client.History(testID, 50)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}

	if len(resp.Attempts) == 0 {
		fmt.Println("No finished attempts.")
		return
	}

	fmt.Printf("%-34s %-14s %-12s %-8s %-8s %s\n",
		"Attempt", "Test", "Status", "Score", "Pass", "Violations")
	fmt.Println(strings.Repeat("-", 92))
	for _, a := range resp.Attempts {
		pass := "no"
		if a.Passed {
			pass = "yes"
		}
		fmt.Printf("%-34s %-14s %-12s %3d%%     %-8s %d\n",
			a.ID, a.TestID, a.Status, a.Percentage, pass, a.Violations)
	}
}

func cmdViolations(attemptID string) {
	client := connect()
	defer client.Close()

	resp, err := client.Violations(attemptID)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}

	if len(resp.Violations) == 0 {
		fmt.Println("No violations recorded.")
		return
	}

	fmt.Printf("%-24s %-18s %-8s %s\n", "Time", "Type", "Counted", "Detail")
	fmt.Println(strings.Repeat("-", 76))
	for _, v := range resp.Violations {
		counted := "no"
		if v.Counted {
			counted = "yes"
		}
		fmt.Printf("%-24s %-18s %-8s %s\n",
			v.Timestamp.Format(time.RFC3339), v.Type, counted, v.Detail)
	}
}

func cmdCert(recipient string) {
	client := connect()
	defer client.Close()

	resp, err := client.Certificate(recipient)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}

	c := resp.Certificate
	fmt.Println("=== Certificate ===")
	fmt.Printf("Recipient: %s\n", c.Recipient)
	fmt.Printf("Test:      %s\n", c.TestID)
	fmt.Printf("Attempt:   %s\n", c.AttemptID)
	fmt.Printf("Score:     %d/%d (%d%%)\n", c.Score, c.Total, c.Percentage)
	fmt.Printf("Issued:    %s\n", c.IssuedAt.Format(time.RFC3339))
}

func cmdVerify(attemptID string) {
	client := connect()
	defer client.Close()

	resp, err := client.VerifyRecord(attemptID)
	if err != nil {
		fatal(err)
	}
	if printJSON(resp) {
		return
	}

	if resp.Valid {
		fmt.Println("Record verification PASSED")
	} else {
		fmt.Println("Record verification FAILED: stored record does not match its HMAC")
		os.Exit(1)
	}
}

func printSnapshot(s *session.Snapshot) {
	if s == nil {
		return
	}

	fmt.Printf("State: %s", s.State)
	if s.AttemptID != "" {
		fmt.Printf("  (attempt %s, test %s)", s.AttemptID, s.TestID)
	}
	fmt.Println()

	if s.QuestionCount > 0 {
		fmt.Printf("Question %d/%d", s.CurrentIndex+1, s.QuestionCount)
		if s.CurrentQuestion != nil {
			fmt.Printf(": %s", s.CurrentQuestion.Prompt)
		}
		fmt.Println()
		if s.CurrentQuestion != nil {
			for _, opt := range s.CurrentQuestion.Options {
				marker := " "
				if s.CurrentIndex < len(s.Answers) {
					rec := s.Answers[s.CurrentIndex]
					if rec.Answered && rec.Selected == opt {
						marker = "*"
					}
				}
				fmt.Printf("  [%s] %s\n", marker, opt)
			}
		}
		fmt.Printf("Unanswered: %d  Flagged: %d\n", s.Unanswered, s.Flagged)
	}

	fmt.Printf("Time remaining: %s (%s)\n",
		(time.Duration(s.RemainingSeconds) * time.Second).String(), s.TimerTier)
	fmt.Printf("Warnings: %d/%d\n", s.Warnings.Count, s.Warnings.Max)
	if s.LastViolation != nil {
		fmt.Printf("Last violation: %s (%s)\n", s.LastViolation.Type, s.LastViolation.Detail)
	}
	if s.TerminationDetail != "" {
		fmt.Printf("Termination: %s\n", s.TerminationDetail)
	}
}

func printResult(resp *ipc.SubmitResponse) {
	fmt.Println("=== Attempt Result ===")
	fmt.Printf("Attempt: %s\n", resp.AttemptID)
	fmt.Printf("Status:  %s\n", resp.Status)
	if resp.Outcome != nil {
		o := resp.Outcome
		fmt.Printf("Score:   %d/%d (%d%%)\n", o.Score, o.TotalQuestions, o.Percentage)
		if o.Passed {
			fmt.Println("Result:  PASSED")
		} else {
			fmt.Println("Result:  FAILED")
		}
		if len(o.Sections) > 0 {
			fmt.Println("Sections:")
			for _, s := range o.Sections {
				fmt.Printf("  %-20s %d/%d\n", s.Section, s.Correct, s.Total)
			}
		}
	}
}

func printJSON(v any) bool {
	if !*asJSON {
		return false
	}
	data, err := ipc.Encode(v)
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
	return true
}
