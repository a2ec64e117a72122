/*
nimbus - Air quality badge controller
Copyright (C) 2024, lashy0

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/


// Package badge runs the air quality badge: the daemon that ties the sensor,
// battery, buttons and display together, and the CLI that talks to it.
package badge

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/lashy0/nimbus/eeprom"
	"github.com/lashy0/nimbus/internal/config"
	"github.com/lashy0/nimbus/internal/logging"
)

type Args struct {
	Run         *subcommand    `arg:"subcommand:run" help:"Run the badge daemon."`
	Status      *subcommand    `arg:"subcommand:status" help:"Show the state of the running daemon."`
	Brightness  *brightnessCmd `arg:"subcommand:brightness" help:"Get or set the display brightness."`
	Monitor     *subcommand    `arg:"subcommand:monitor" help:"Turn the display off and keep sampling."`
	Wake        *subcommand    `arg:"subcommand:wake" help:"Turn the display back on."`
	Shutdown    *subcommand    `arg:"subcommand:shutdown" help:"Power the badge off."`
	Recalibrate *subcommand    `arg:"subcommand:recalibrate" help:"Drop the learnt gas baseline and calibrate again."`
	Board       *boardCmd      `arg:"subcommand:board" help:"Print or provision the board information in the EEPROM."`
	config.ConfigArgs
	logging.LogArgs
}

type subcommand struct {
}

type brightnessCmd struct {
	Percent int  `arg:"positional" help:"brightness to set, 5 to 100"`
	Step    bool `arg:"--step" help:"advance to the next preset"`
}

type boardCmd struct {
	Write *boardWriteCmd `arg:"subcommand:write" help:"Write a new board information block."`
}

type boardWriteCmd struct {
	Hardware string `arg:"required" help:"hardware revision, major.minor.patch"`
	ID       string `arg:"required" help:"board id in hex"`
}

func (Args) Version() string {
	return version
}

var (
	log     = logging.NewLogger("info")
	version = "<not set>"
)

var defaultArgs = Args{}

func procArgs(input []string) (Args, error) {
	args := defaultArgs

	parser, err := arg.NewParser(arg.Config{}, &args)
	if err != nil {
		return Args{}, err
	}
	err = parser.Parse(input)
	if errors.Is(err, arg.ErrHelp) {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if errors.Is(err, arg.ErrVersion) {
		fmt.Println(version)
		os.Exit(0)
	}
	return args, err
}

func Run(inputArgs []string, ver string) error {
	version = ver
	args, err := procArgs(inputArgs)
	if err != nil {
		return fmt.Errorf("failed to parse args: %v", err)
	}

	log = logging.NewLogger(args.LogLevel)

	switch {
	case args.Run != nil:
		log.Infof("Running version: %s", version)
		return runDaemon(args.ConfigDir)
	case args.Board != nil && args.Board.Write != nil:
		return writeBoard(args.Board.Write)
	case args.Board != nil:
		return printBoard()
	}

	c, err := newClient()
	if err != nil {
		return fmt.Errorf("failed to connect to dbus: %v", err)
	}
	switch {
	case args.Status != nil:
		status, err := c.status()
		if err != nil {
			return err
		}
		for _, line := range formatStatus(status) {
			fmt.Println(line)
		}
	case args.Brightness != nil:
		return runBrightness(c, args.Brightness)
	case args.Monitor != nil:
		return c.simple("EnterMonitoring")
	case args.Wake != nil:
		return c.simple("ExitMonitoring")
	case args.Recalibrate != nil:
		return c.simple("Recalibrate")
	case args.Shutdown != nil:
		log.Info("Requesting shutdown")
		return c.simple("Shutdown")
	default:
		return fmt.Errorf("no subcommand given")
	}
	return nil
}

func runBrightness(c *client, cmd *brightnessCmd) error {
	switch {
	case cmd.Step:
		v, err := c.stepBrightness()
		if err != nil {
			return err
		}
		fmt.Printf("%d%%\n", v)
	case cmd.Percent != 0:
		if err := c.setBrightness(cmd.Percent); err != nil {
			return err
		}
		fmt.Printf("%d%%\n", cmd.Percent)
	default:
		v, err := c.brightness()
		if err != nil {
			return err
		}
		fmt.Printf("%d%%\n", v)
	}
	return nil
}

func printBoard() error {
	info, err := eeprom.Read()
	if err != nil {
		log.Warn("Failed to read EEPROM, showing defaults: ", err)
	}
	fmt.Printf("present: %t\n", info.Present)
	fmt.Printf("version: %d\n", info.Version)
	fmt.Printf("hardware: %s\n", info.Hardware)
	fmt.Printf("id: %016x\n", info.ID)
	if !info.Time.IsZero() {
		fmt.Printf("time: %s\n", info.Time.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("battery divider: %.1f\n", info.DividerRatio())
	return nil
}

func writeBoard(cmd *boardWriteCmd) error {
	info, err := boardInfo(cmd, time.Now())
	if err != nil {
		return err
	}
	if err := eeprom.Write(info); err != nil {
		return fmt.Errorf("failed to write EEPROM: %v", err)
	}
	log.Infof("Board %s %016x written", info.Hardware, info.ID)
	return nil
}

func boardInfo(cmd *boardWriteCmd, now time.Time) (eeprom.BoardInfo, error) {
	var hw eeprom.SemVer
	if _, err := fmt.Sscanf(cmd.Hardware, "%d.%d.%d", &hw.Major, &hw.Minor, &hw.Patch); err != nil {
		return eeprom.BoardInfo{}, fmt.Errorf("invalid hardware revision '%s': %v", cmd.Hardware, err)
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(cmd.ID, "0x"), 16, 64)
	if err != nil {
		return eeprom.BoardInfo{}, fmt.Errorf("invalid board id '%s': %v", cmd.ID, err)
	}
	return eeprom.BoardInfo{
		Version:  1,
		Hardware: hw,
		ID:       id,
		Time:     now.Truncate(time.Second),
	}, nil
}
