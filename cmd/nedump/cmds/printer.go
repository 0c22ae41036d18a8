package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v2"
)

const (
	titleEscapeCode = "\033[1;%2dm"
	resetEscapeCode = "\033[0m"
	titleColor      = 34
)

// printer writes the output of a command in one of the supported formats.
type printer struct {
	w      io.Writer
	format string
	color  bool
	docs   int
}

type keyValue struct {
	key   string
	value interface{}
}

func newPrinter(w io.Writer, format string, color bool) *printer {
	if format == "" {
		format = "table"
	}
	return &printer{w: w, format: format, color: color}
}

func (p *printer) check() error {
	switch p.format {
	case "table", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unknown output format %q", p.format)
}

func (p *printer) title(s string) {
	if p.docs > 0 {
		fmt.Fprintln(p.w)
	}
	p.docs++
	if p.color {
		fmt.Fprintf(p.w, titleEscapeCode+"%s"+resetEscapeCode+"\n", titleColor, s)
		return
	}
	fmt.Fprintf(p.w, "%s\n", s)
}

func (p *printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.w, 0, 8, 2, ' ', 0)
}

// encode writes the document for file path, its values in order.
func (p *printer) encode(path string, doc []keyValue) error {
	switch p.format {
	case "json":
		m := make(map[string]interface{}, len(doc)+1)
		m["file"] = path
		for _, kv := range doc {
			m[kv.key] = kv.value
		}
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "yaml":
		ms := yaml.MapSlice{{Key: "file", Value: path}}
		for _, kv := range doc {
			ms = append(ms, yaml.MapItem{Key: kv.key, Value: kv.value})
		}
		out, err := yaml.Marshal(ms)
		if err != nil {
			return err
		}
		if p.docs > 0 {
			fmt.Fprintln(p.w, "---")
		}
		p.docs++
		_, err = p.w.Write(out)
		return err
	}
	return fmt.Errorf("format %q can not encode values", p.format)
}

// value writes v as a single document, outside of any file.
func (p *printer) value(v interface{}) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = p.w.Write(out)
		return err
	}
	return fmt.Errorf("format %q can not encode values", p.format)
}
