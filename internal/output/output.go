package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatWide  Format = "wide"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "wide":
		return FormatWide
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetWriter sets the output writer
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// Print outputs data in the configured format
func (p *Printer) Print(data interface{}) error {
	switch p.format {
	case FormatJSON:
		return p.printJSON(data)
	case FormatYAML:
		return p.printYAML(data)
	default:
		// Table and Wide are handled by specific methods
		return p.printJSON(data)
	}
}

func (p *Printer) printJSON(data interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// Color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
)

// Colorize adds color to text
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

// TableWriter creates a tabwriter for aligned output
func (p *Printer) TableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// PublishRow represents one publish/subscribe/unsubscribe call in table output.
type PublishRow struct {
	Operation  string `json:"operation" yaml:"operation"`
	Topic      string `json:"topic" yaml:"topic"`
	BodySize   int    `json:"body_size" yaml:"body_size"`
	RequestID  string `json:"request_id" yaml:"request_id"`
	QueuedTime string `json:"queued_at" yaml:"queued_at"`
}

// PrintPublishRows prints a list of enqueued publish/subscribe calls.
func (p *Printer) PrintPublishRows(rows []PublishRow) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.writer, "No operations queued")
		return nil
	}

	w := p.TableWriter()
	fmt.Fprintln(w, p.Colorize(Bold, "OPERATION\tTOPIC\tBYTES\tREQUEST ID\tQUEUED"))
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			p.Colorize(Cyan, row.Operation),
			row.Topic,
			row.BodySize,
			row.RequestID,
			row.QueuedTime,
		)
	}
	return w.Flush()
}

// MessageRow represents one message retrieved from a Client's mailbox.
type MessageRow struct {
	RequestID string          `json:"request_id" yaml:"request_id"`
	Body      json.RawMessage `json:"body,omitempty" yaml:"body,omitempty"`
	BodyText  string          `json:"body_text,omitempty" yaml:"body_text,omitempty"`
	Retrieved string          `json:"retrieved_at" yaml:"retrieved_at"`
}

// PrintMessage prints one retrieved message.
func (p *Printer) PrintMessage(msg MessageRow) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(msg)
	}

	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Request ID:"), msg.RequestID)
	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Retrieved:"), msg.Retrieved)
	fmt.Fprintf(p.writer, "%s\n", p.Colorize(Bold, "Body:"))

	if len(msg.Body) > 0 {
		var pretty interface{}
		if err := json.Unmarshal(msg.Body, &pretty); err == nil {
			formatted, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Fprintln(p.writer, string(formatted))
			return nil
		}
	}
	fmt.Fprintln(p.writer, msg.BodyText)
	return nil
}

// ClientStatus represents a Client's current state for the "status" command.
type ClientStatus struct {
	Name          string `json:"name" yaml:"name"`
	Server        string `json:"server" yaml:"server"`
	Running       bool   `json:"running" yaml:"running"`
	OutgoingDepth int    `json:"outgoing_depth" yaml:"outgoing_depth"`
	IncomingDepth int    `json:"incoming_depth" yaml:"incoming_depth"`
}

// PrintClientStatus prints a Client's queue depths and liveness.
func (p *Printer) PrintClientStatus(s ClientStatus) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(s)
	}

	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Name:"), s.Name)
	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Server:"), s.Server)
	if s.Running {
		fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Running:"), p.Colorize(Green, "true"))
	} else {
		fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Running:"), p.Colorize(Red, "false"))
	}
	fmt.Fprintf(p.writer, "%s %d\n", p.Colorize(Gray, "Outgoing queue depth:"), s.OutgoingDepth)
	fmt.Fprintf(p.writer, "%s %d\n", p.Colorize(Gray, "Incoming queue depth:"), s.IncomingDepth)
	return nil
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Green, "✓ ")+msg)
}

// Error prints an error message
func (p *Printer) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Red, "✗ ")+msg)
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Yellow, "⚠ ")+msg)
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(p.writer, p.Colorize(Blue, "ℹ ")+msg)
}
