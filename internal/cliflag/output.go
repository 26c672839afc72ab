// Package cliflag holds flag types shared by several commands.
package cliflag

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Supported values for the --output flag.
const (
	OutputTable = ""
	OutputJSON  = "json"
)

// Output is a pflag.Value that only accepts the supported output formats.
type Output string

var _ pflag.Value = (*Output)(nil)

func (o *Output) String() string { return string(*o) }

func (o *Output) Type() string { return "format" }

func (o *Output) Set(v string) error {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case OutputTable, "table":
		*o = OutputTable
	case OutputJSON:
		*o = OutputJSON
	default:
		return fmt.Errorf("unsupported --output value %q: use 'json'", v)
	}
	return nil
}

// AddOutputFlag registers -o/--output on fs.
func AddOutputFlag(fs *pflag.FlagSet) {
	o := Output(OutputTable)
	fs.VarP(&o, "output", "o", "Output format: json")
}

// GetOutput returns the value of the --output flag registered by
// AddOutputFlag, or OutputTable when fs has none.
func GetOutput(fs *pflag.FlagSet) string {
	f := fs.Lookup("output")
	if f == nil {
		return OutputTable
	}
	return f.Value.String()
}
