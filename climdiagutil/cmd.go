/*
Copyright © 2019 the ClimDiag authors.
This file is part of ClimDiag.

ClimDiag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ClimDiag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ClimDiag.  If not, see <http://www.gnu.org/licenses/>.
*/

package climdiagutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/climdiag"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var logger *logrus.Logger

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	logger = logrus.StandardLogger()
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})

	// Options are the configuration options available to ClimDiag.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to the NetCDF model-history file to be
              analyzed. It can be a local path, an 'http://' or 'https://'
              URL, or a 'gs://', 's3://', or 'file://' blob storage location,
              and it can include environment variables.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the diagnostics NetCDF file
              should be created. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "climdiag_output.nc",
			flagsets:   []*pflag.FlagSet{avgCmd.Flags(), zonalCmd.Flags(), diagCmd.Flags()},
		},
		{
			name: "Var",
			usage: `
              Var is the name of the model variable to be processed.`,
			shorthand:  "v",
			defaultVal: "TS",
			flagsets:   []*pflag.FlagSet{avgCmd.Flags(), zonalCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "TimeMean",
			usage: `
              TimeMean specifies whether to average the variable over its
              time dimension before processing. Variables without a time
              dimension are unaffected.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{avgCmd.Flags(), zonalCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "SuppliedWeights",
			usage: `
              SuppliedWeights specifies whether to use the area weights
              stored in the input file (the WeightVar variable), when
              present, instead of weights derived from the cosine of
              latitude. The two agree to within about one percent.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{avgCmd.Flags(), diagCmd.Flags()},
		},
		{
			name: "LatVar",
			usage: `
              LatVar is the name of the latitude coordinate variable in
              the input file.`,
			defaultVal: climdiag.DefaultLatVar,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LonVar",
			usage: `
              LonVar is the name of the longitude coordinate variable in
              the input file.`,
			defaultVal: climdiag.DefaultLonVar,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "WeightVar",
			usage: `
              WeightVar is the name of the variable in the input file
              holding source-supplied per-latitude area weights.`,
			defaultVal: climdiag.DefaultWeightVar,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "TimeDim",
			usage: `
              TimeDim is the name of the time dimension in the input file.`,
			defaultVal: climdiag.DefaultTimeDim,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "DerivedVariables",
			usage: `
              DerivedVariables specifies the derived diagnostics to compute,
              as a mapping from output variable names to arithmetic
              expressions over variables in the input file.`,
			defaultVal: defaultDerivedConfig(),
			flagsets:   []*pflag.FlagSet{diagCmd.Flags()},
		},
		{
			name: "PlotType",
			usage: `
              PlotType chooses the kind of plot to draw. Valid options are
              "heatmap", "contour", and "zonal".`,
			defaultVal: "heatmap",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path where the plot should be saved. The
              image format is chosen based on the file extension.`,
			defaultVal: "climdiag_plot.png",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CLIMDIAG")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(describeCmd)
	Root.AddCommand(avgCmd)
	Root.AddCommand(zonalCmd)
	Root.AddCommand(diagCmd)
	Root.AddCommand(plotCmd)
}

// defaultDerivedConfig returns the default derived-variable definitions
// in configuration format.
func defaultDerivedConfig() map[string]string {
	o := make(map[string]string, len(climdiag.DefaultDerivedVars))
	for _, dv := range climdiag.DefaultDerivedVars {
		o[dv.Name] = dv.Expression
	}
	return o
}

// derivedVars converts derived-variable configuration to definitions,
// filling in descriptions and units for the default diagnostics.
func derivedVars(conf map[string]string) []climdiag.DerivedVar {
	defaults := make(map[string]climdiag.DerivedVar, len(climdiag.DefaultDerivedVars))
	for _, dv := range climdiag.DefaultDerivedVars {
		defaults[dv.Name] = dv
	}
	o := make([]climdiag.DerivedVar, 0, len(conf))
	for name, expr := range conf {
		if dv, ok := defaults[name]; ok && dv.Expression == expr {
			o = append(o, dv)
			continue
		}
		o = append(o, climdiag.DerivedVar{Name: name, Expression: expr})
	}
	return o
}

// outChan returns a channel printing to standard output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			fmt.Println(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("climdiag: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// openInput fetches the input file if necessary and opens it as a
// dataset configured from the global configuration.
func openInput(msgChan chan string) (*climdiag.Dataset, error) {
	inputFile, err := checkInputFile(Cfg.GetString("InputFile"))
	if err != nil {
		return nil, err
	}
	path := maybeDownload(context.TODO(), inputFile, msgChan)
	d, err := climdiag.OpenDataset(path, msgChan)
	if err != nil {
		return nil, err
	}
	d.LatVar = Cfg.GetString("LatVar")
	d.LonVar = Cfg.GetString("LonVar")
	d.WeightVar = Cfg.GetString("WeightVar")
	d.TimeDim = Cfg.GetString("TimeDim")
	return d, nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "climdiag",
	Short: "Compute global climate-model diagnostics.",
	Long: `ClimDiag computes area-weighted global diagnostics from NetCDF
climate-model history files. Use the subcommands specified below to
access the functionality.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'CLIMDIAG_var' where 'var' is the name of the variable to be set. Many
configuration variables are additionally allowed to contain environment
variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of ClimDiag.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("ClimDiag v%s\n", climdiag.Version)
	},
	DisableAutoGenTag: true,
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Summarize the input file",
	Long: `describe prints the variables in the input file along with their
dimensions, units, and descriptions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openInput(outChan())
		if err != nil {
			return err
		}
		defer d.Close()
		d.Describe(cmd.OutOrStdout())
		return nil
	},
	DisableAutoGenTag: true,
}

var avgCmd = &cobra.Command{
	Use:   "avg",
	Short: "Compute an area-weighted global average",
	Long: `avg computes the area-weighted global average of the variable
specified by Var, correcting for the convergence of meridians toward the
poles. Leading (time, level) dimensions are retained unless TimeMean
is set, in which case the variable is first averaged over time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Average(cmd.OutOrStdout(),
			Cfg.GetString("Var"),
			Cfg.GetBool("TimeMean"),
			Cfg.GetBool("SuppliedWeights"),
			os.ExpandEnv(Cfg.GetString("OutputFile")))
	},
	DisableAutoGenTag: true,
}

var zonalCmd = &cobra.Command{
	Use:   "zonal",
	Short: "Compute a zonal mean",
	Long: `zonal computes the mean of the variable specified by Var over its
longitude dimension, retaining the latitude dimension.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Zonal(cmd.OutOrStdout(),
			Cfg.GetString("Var"),
			Cfg.GetBool("TimeMean"),
			os.ExpandEnv(Cfg.GetString("OutputFile")))
	},
	DisableAutoGenTag: true,
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Compute derived diagnostics",
	Long: `diag computes the derived diagnostics specified by
DerivedVariables from time means of the input variables, along with the
global average of each, and writes the results to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return Diag(cmd.OutOrStdout(),
			derivedVars(GetStringMapString("DerivedVariables", Cfg)),
			Cfg.GetBool("SuppliedWeights"),
			outputFile)
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot a variable",
	Long: `plot draws the variable specified by Var as a map or zonal-mean
figure, as chosen by PlotType, and saves it to PlotFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		plotFile, err := checkOutputFile(Cfg.GetString("PlotFile"))
		if err != nil {
			return err
		}
		return Plot(
			Cfg.GetString("Var"),
			Cfg.GetBool("TimeMean"),
			Cfg.GetString("PlotType"),
			plotFile)
	},
	DisableAutoGenTag: true,
}
