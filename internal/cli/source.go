package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/salahnow/internal/config"
	"github.com/smokyabdulrahman/salahnow/internal/source"
)

func newSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Show or change the prayer time source",
		Long:  "Show which source serves the current location and list the available sources.\nOutside Türkiye the mwl source is always used, whatever is configured.",
		Args:  cobra.NoArgs,
		RunE:  runSourceShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name>",
		Short: "Store the preferred source",
		Args:  cobra.ExactArgs(1),
		RunE:  runSourceSet,
	})

	return cmd
}

type sourceJSON struct {
	Preferred  string `json:"preferred"`
	Effective  string `json:"effective"`
	DistrictID string `json:"districtId,omitempty"`
	Forced     bool   `json:"forced,omitempty"`
	Location   string `json:"location"`
}

func runSourceShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	loc, err := resolveLocation(contextOf(cmd), a.cfg, a.svc)
	if err != nil {
		return err
	}
	res, err := source.Resolve(loc, a.source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if FlagJSON {
		data, err := json.MarshalIndent(sourceJSON{
			Preferred:  string(a.source),
			Effective:  string(res.Source),
			DistrictID: res.DistrictID,
			Forced:     res.Forced,
			Location:   loc.String(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "  Location: %s\n", loc)
	fmt.Fprintf(out, "  In use:   %s\n", sourceLabel(res))
	fmt.Fprintln(out)
	for _, s := range source.All {
		marker := " "
		if s == a.source {
			marker = "*"
		}
		fmt.Fprintf(out, "  %s %-8s %s\n", marker, s, s.Description())
	}
	return nil
}

func runSourceSet(cmd *cobra.Command, args []string) error {
	src, err := source.Parse(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile()
	if err != nil {
		return err
	}
	if err := cfg.Set("source", string(src)); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Source set to %s\n", src)
	return nil
}
