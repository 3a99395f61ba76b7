package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/tunelang/tune"
	"github.com/tunelang/tune/gomidi"
	"github.com/tunelang/tune/oto"
	"github.com/tunelang/tune/report"
	"github.com/tunelang/tune/synth"
	"github.com/tunelang/tune/version"
	"github.com/tunelang/tune/vm"
)

func main() {
	os.Exit(run())
}

func run() int {
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, files are placed in the working directory.")
	play := flag.Bool("p", false, "Play the input programs (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered performance as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered performance as .wav file. By default, saves stereo float32 buffer to disk.")
	midOut := flag.Bool("m", false, "Output the notes of the performance as a .mid file.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	summary := flag.Bool("s", false, "Print a summary of each performance to standard output.")
	configFile := flag.String("config", "", "Configuration file. By default, tune/config.yml in the user configuration directory is used if it exists.")
	logFile := flag.String("logfile", "", "Also append warnings to this file.")
	debug := flag.Bool("d", false, "Trace every executed statement to standard error.")
	list := flag.Bool("l", false, "List the available instruments and ref calls.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		return 0
	}
	if *list {
		for _, inst := range tune.Instruments() {
			fmt.Printf("%-10s %v\n", inst, inst.Voice().Waveform)
		}
		fmt.Printf("\nref calls: %v\n", strings.Join(vm.Builtins(), ", "))
		return 0
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		return 0
	}
	if !*rawOut && !*wavOut && !*midOut && !*summary {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var logOutput io.Writer = os.Stderr
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		logOutput = io.MultiWriter(os.Stderr, f)
	}
	logger := log.New(logOutput, "", log.LstdFlags)
	config, err := tune.LoadConfig(*configFile)
	if err != nil {
		logger.Printf("warning: %v, using defaults", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	var device tune.AudioContext
	if *play {
		if device, err = oto.NewContext(config.SampleRate); err != nil {
			logger.Printf("warning: could not acquire oto AudioContext, playing silently: %v", err)
			device = tune.SilentContext{Rate: config.SampleRate}
		}
		defer device.Close()
	}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		inputBytes, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %v", filename, err)
		}
		program, err := tune.DecodeProgram(inputBytes)
		if err != nil {
			return err
		}
		render := &tune.RenderContext{Rate: config.SampleRate}
		var audio tune.AudioContext = render
		if *play {
			if *rawOut || *wavOut {
				audio = tune.TeeContext(device, render)
			} else {
				audio = device
			}
		}
		s := synth.New(config.SampleRate, config.Clip)
		interpreter := vm.New(s, synth.NewMixer(config.Chord), audio, config, logger)
		if *debug {
			interpreter.SetTrace(log.New(os.Stderr, "trace: ", 0))
		}
		if err := interpreter.Run(ctx, program); err != nil {
			return fmt.Errorf("run stopped: %w", err)
		}
		buffer := render.Buffer()
		if *rawOut {
			raw, err := buffer.Raw(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			wav, err := buffer.Wav(config.SampleRate, *pcm)
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", wav); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		performance := interpreter.Performance()
		if *midOut {
			var mid bytes.Buffer
			if err := gomidi.WriteSMF(&mid, performance); err != nil {
				return fmt.Errorf("could not generate .mid file: %v", err)
			}
			if err := output(".mid", mid.Bytes()); err != nil {
				return fmt.Errorf("error outputting .mid file: %v", err)
			}
		}
		if *summary {
			name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
			if err := report.Write(os.Stdout, report.Summarize(name, performance)); err != nil {
				return err
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		files := []string{param}
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			jsonfiles, err := filepath.Glob(filepath.Join(param, "*.json"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for json files: %v\n", param, err)
				retval = 1
				continue
			}
			ymlfiles, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			files = append(ymlfiles, jsonfiles...)
		}
		for _, file := range files {
			if err := process(file); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
				retval = 1
				if errors.Is(err, context.Canceled) {
					return retval
				}
			}
		}
	}
	return retval
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "tune-play runs music programs given as .json/.yml syntax trees.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
