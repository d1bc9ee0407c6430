// Command wrtctl is the thin CLI wrapper over package wrt: argument
// parsing, textual matrix (de)serialization, and pretty printing only — it
// holds no frame-graph logic of its own.
package main

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	wrt "github.com/PhilNad/with-respect-to"
)

var (
	inWorld string
	wrtName string
	eiName  string
	getName string
	setName string
	asStr   string
	dir     string
	compact bool
	quiet   bool
)

var matrixEntry = `([+-]?\d+(\.\d+)?)`

var matrixRegex = regexp.MustCompile(`^(` + matrixEntry + `,){15}` + matrixEntry + `$`)

var rootCmd = &cobra.Command{
	Use:           "wrtctl",
	Short:         "Query and mutate a with-respect-to frame graph from the shell.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&inWorld, "In", "", "world name (required)")
	rootCmd.Flags().StringVar(&wrtName, "Wrt", "", "basis frame name (required)")
	rootCmd.Flags().StringVar(&eiName, "Ei", "", "coordinate-system frame name (required)")
	rootCmd.Flags().StringVar(&getName, "Get", "", "subject frame to query")
	rootCmd.Flags().StringVar(&setName, "Set", "", "subject frame to store")
	rootCmd.Flags().StringVar(&asStr, "As", "", "16-number row-major matrix, required with --Set")
	rootCmd.Flags().StringVarP(&dir, "dir", "d", "", "override the database directory")
	rootCmd.Flags().BoolVarP(&compact, "compact", "c", false, "print the matrix as one comma-separated row")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress error text; rely on the exit code")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !quiet {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if inWorld == "" || wrtName == "" || eiName == "" {
		return fmt.Errorf("--In, --Wrt and --Ei are required")
	}
	if (getName == "") == (setName == "") {
		return fmt.Errorf("exactly one of --Get or --Set is required")
	}

	var opts []wrt.Option
	if dir != "" {
		opts = append(opts, wrt.WithDir(dir))
	}

	if getName != "" {
		m, err := wrt.In(inWorld, opts...).Get(getName).Wrt(wrtName).Ei(eiName)
		if err != nil {
			return err
		}
		printMatrix(m)
		return nil
	}

	if asStr == "" {
		return fmt.Errorf("--Set requires --As")
	}
	m, err := parseMatrix(asStr)
	if err != nil {
		return err
	}
	return wrt.In(inWorld, opts...).Set(setName).Wrt(wrtName).Ei(eiName).As(m)
}

// parseMatrix strips brackets/whitespace, validates the 16-number row-major
// grammar, and builds the canonical 4x4 dense form.
func parseMatrix(s string) (*mat.Dense, error) {
	stripper := strings.NewReplacer("[", "", "]", "", "\r", "", "\n", "", "\t", "", " ", "")
	clean := stripper.Replace(s)
	if !matrixRegex.MatchString(clean) {
		return nil, fmt.Errorf("--As must be 16 comma-separated numbers")
	}

	fields := strings.Split(clean, ",")
	vals := make([]float64, 16)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("--As: invalid number %q", f)
		}
		vals[i] = v
	}
	return mat.NewDense(4, 4, vals), nil
}

func printMatrix(m *mat.Dense) {
	if compact {
		entries := make([]string, 0, 16)
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				entries = append(entries, strconv.FormatFloat(m.At(i, j), 'g', -1, 64))
			}
		}
		fmt.Println(strings.Join(entries, ","))
		return
	}
	for i := 0; i < 4; i++ {
		fmt.Printf("%g\t%g\t%g\t%g\n", m.At(i, 0), m.At(i, 1), m.At(i, 2), m.At(i, 3))
	}
}
