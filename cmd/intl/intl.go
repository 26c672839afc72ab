// Package intl provides commands for computing minified translation key
// identifiers and rewriting patterns that reference keys by name.
package intl

import (
	"context"
	"fmt"
	"io"

	"github.com/kernel/extkit/internal/cliflag"
	"github.com/kernel/extkit/pkg/intl"
	"github.com/kernel/extkit/pkg/table"
	"github.com/kernel/extkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// HashCmd handles intl key operations.
type HashCmd struct {
	out io.Writer
}

// IntlCmd is the parent command for intl key operations.
var IntlCmd = &cobra.Command{
	Use:   "intl",
	Short: "Hash translation keys and rewrite intl patterns",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// KeysInput holds input for hashing translation keys.
type KeysInput struct {
	Keys   []string
	Output string
}

type keyResult struct {
	Key string `json:"key"`
	ID  string `json:"id"`
}

// Keys prints the short identifier for each key.
func (h HashCmd) Keys(ctx context.Context, in KeysInput) error {
	results := lo.Map(in.Keys, func(k string, _ int) keyResult {
		return keyResult{Key: k, ID: intl.HashKey(k)}
	})

	if in.Output == cliflag.OutputJSON {
		return util.PrintPrettyJSON(h.out, results)
	}

	rows := pterm.TableData{{"Key", "ID"}}
	for _, r := range results {
		rows = append(rows, []string{r.Key, r.ID})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// PatternInput holds input for rewriting an intl pattern.
type PatternInput struct {
	Pattern string
	Regex   bool
	Flags   string
	Match   []string
}

// Pattern rewrites the placeholders in a pattern. In regex mode the result is
// compiled, and each Match sample is tested against it.
func (h HashCmd) Pattern(ctx context.Context, in PatternInput) error {
	if !in.Regex {
		if len(in.Match) > 0 {
			return fmt.Errorf("--match requires --regex")
		}
		fmt.Fprintln(h.out, intl.HashPattern(in.Pattern))
		return nil
	}

	hashed := intl.HashRegexp(intl.NewRegexp(in.Pattern, in.Flags))
	re, err := hashed.Compile()
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", hashed, err)
	}
	fmt.Fprintln(h.out, hashed.Source)

	for _, s := range in.Match {
		loc := re.FindStringIndex(s)
		if loc == nil {
			pterm.Warning.Printf("no match: %s\n", s)
			continue
		}
		pterm.Success.Printf("match: %s -> %q\n", s, s[loc[0]:loc[1]])
	}
	return nil
}

var hashCmd = &cobra.Command{
	Use:   "hash <key>...",
	Short: "Print the short identifier for translation keys",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHash,
}

var patternCmd = &cobra.Command{
	Use:   "pattern <text>",
	Short: "Expand #{intl::KEY} placeholders in a pattern",
	Long: `Expand #{intl::KEY} and #{intl::KEY::raw} placeholders to the property
access minified code uses for the key.

With --regex the text is treated as a regular expression source: placeholders
are escaped and \i expands to an identifier pattern.`,
	Args: cobra.ExactArgs(1),
	RunE: runPattern,
}

func init() {
	IntlCmd.AddCommand(hashCmd)
	IntlCmd.AddCommand(patternCmd)

	cliflag.AddOutputFlag(hashCmd.Flags())

	patternCmd.Flags().Bool("regex", false, "Treat the pattern as a regular expression")
	patternCmd.Flags().String("flags", "", "Regular expression flags (i, m, s; g, y, u, d, v are accepted and ignored)")
	patternCmd.Flags().StringArray("match", nil, "Sample text to test the rewritten expression against (repeatable)")
}

func runHash(cmd *cobra.Command, args []string) error {
	h := HashCmd{out: cmd.OutOrStdout()}
	return h.Keys(cmd.Context(), KeysInput{Keys: args, Output: cliflag.GetOutput(cmd.Flags())})
}

func runPattern(cmd *cobra.Command, args []string) error {
	regex, _ := cmd.Flags().GetBool("regex")
	flags, _ := cmd.Flags().GetString("flags")
	match, _ := cmd.Flags().GetStringArray("match")

	h := HashCmd{out: cmd.OutOrStdout()}
	return h.Pattern(cmd.Context(), PatternInput{
		Pattern: args[0],
		Regex:   regex,
		Flags:   flags,
		Match:   match,
	})
}
