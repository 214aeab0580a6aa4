package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/taskdesk/internal/platform"
	"github.com/felixgeelhaar/taskdesk/internal/platform/contract"
	"github.com/felixgeelhaar/taskdesk/internal/ux"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "List the backend API operations taskdesk relies on",
	Long: `List the operations of the backend REST contract bundled with taskdesk and
mark the ones this client calls. Useful when pointing taskdesk at a new
backend version.`,
	Args: cobra.NoArgs,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

type operationView struct {
	contract.Operation `yaml:",inline"`
	Used               bool `json:"used" yaml:"used"`
}

type operationList []operationView

func (l operationList) RenderText(w io.Writer) error {
	rows := make([][]string, 0, len(l))
	for _, op := range l {
		used, auth := "", "token"
		if op.Used {
			used = "yes"
		}
		if op.Public {
			auth = "public"
		}
		rows = append(rows, []string{op.Method, op.Path, auth, used, op.Summary})
	}
	return ux.WriteTable(w, []string{"METHOD", "PATH", "AUTH", "USED", "SUMMARY"}, rows)
}

func runAPI(cmd *cobra.Command, args []string) error {
	c, err := contract.Load(cmd.Context())
	if err != nil {
		return err
	}

	used := make(map[platform.Endpoint]bool, len(platform.Endpoints))
	for _, ep := range platform.Endpoints {
		used[ep] = true
	}

	ops := c.Operations()
	list := make(operationList, 0, len(ops))
	for _, op := range ops {
		list = append(list, operationView{
			Operation: op,
			Used:      used[platform.Endpoint{Method: op.Method, Path: op.Path}],
		})
	}

	format, _ := cmd.Flags().GetString("output")
	out, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	return out.Format(list)
}
