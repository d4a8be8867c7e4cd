package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vizkit/grapher/pkg/chart"
	"github.com/vizkit/grapher/pkg/series"
	"github.com/vizkit/grapher/pkg/util"
)

func addCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "ingest data-file",
		Short: "Ingest a legacy variable payload and summarize the resulting table",
		Args:  cobra.ExactArgs(1),
		RunE:  ingestCmd,
	}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "export config-file data-file",
		Short: "Export the chart's table as delimited text",
		Args:  cobra.ExactArgs(2),
		RunE:  exportCmd,
	}
	cmd.Flags().StringP("delimiter", "d", ",", "field delimiter")
	cmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "inspect config-file data-file",
		Short: "Show the derived chart state for a config and data payload",
		Args:  cobra.ExactArgs(2),
		RunE:  inspectCmd,
	}
	root.AddCommand(cmd)
}

func loadSession(cmd *cobra.Command, configPath, dataPath string) (*chart.Grapher, error) {
	verbosity, _ := cmd.Flags().GetInt("verbosity")
	authoring, _ := cmd.Flags().GetBool("authoring")

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	config, err := chart.LoadConfig(configData)
	if err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, err
	}
	bundle, err := series.Parse(payload)
	if err != nil {
		return nil, err
	}

	g := chart.New(config, chart.Options{
		Authoring: authoring,
		Logger:    makeLogger(verbosity),
	})
	if err := g.ReceiveData(bundle); err != nil {
		return nil, err
	}
	return g, nil
}

func ingestCmd(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetInt("verbosity")
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	bundle, err := series.Parse(payload)
	if err != nil {
		return err
	}
	t, err := series.Ingest(bundle, makeLogger(verbosity))
	if err != nil {
		return err
	}
	fmt.Printf("variables: %d\n", len(bundle.Variables))
	fmt.Printf("rows:      %d\n", t.NumRows())
	fmt.Printf("columns:   %s\n", strings.Join(t.Slugs(), ", "))
	return nil
}

func exportCmd(cmd *cobra.Command, args []string) error {
	g, err := loadSession(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	delim, _ := cmd.Flags().GetString("delimiter")
	out, _ := cmd.Flags().GetString("output")

	text := g.Table().ToDelimited(delim)
	if out == "" {
		fmt.Print(text)
		return nil
	}
	return os.WriteFile(out, []byte(text), 0o644)
}

func inspectCmd(cmd *cobra.Command, args []string) error {
	g, err := loadSession(cmd, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("ready:    %v\n", g.IsReady())
	fmt.Printf("title:    %s\n", g.DisplayTitle())
	if minTime, maxTime, ok := g.TimeDomain(); ok {
		fmt.Printf("time:     [%d, %d]\n", minTime, maxTime)
	}
	fmt.Printf("entities: %s\n", strings.Join(g.AvailableEntities(), ", "))
	for _, dim := range g.FilledDimensions() {
		fmt.Printf("dimension %d: %s=%d (%s)\n",
			dim.Index, dim.Property(), dim.VariableID(), dim.DisplayName())
	}
	for _, info := range g.KeyInfos() {
		fmt.Printf("key %-30s %s\n", info.Key, info.Label)
	}
	if keys := g.SelectedKeys(); len(keys) > 0 {
		fmt.Printf("selected: %s\n", strings.Join(keys, ", "))
	}
	fmt.Printf("config:   %s\n", util.Stringify(g.Config()))
	return nil
}
