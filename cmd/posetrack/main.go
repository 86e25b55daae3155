package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/posetrack/internal/capture"
	"github.com/san-kum/posetrack/internal/config"
	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/driver"
	"github.com/san-kum/posetrack/internal/scene"
	"github.com/san-kum/posetrack/internal/session"
	"github.com/san-kum/posetrack/internal/status"
	"github.com/san-kum/posetrack/internal/storage"
)

var (
	configFile string
	listOnly   bool
	output     string
	devices    []int
	driverName string
	duration   time.Duration
	tick       time.Duration
	statusMode string
	dataDir    string
	noArchive  bool
	// plot
	plotDevice int
	plotField  string
	// export-csv
	csvOutput string
)

// main runs the recorder. Errors are printed by cobra and exit with status 1.
func main() {
	log.SetFlags(0)
	log.SetPrefix("posetrack: ")

	rootCmd := newRootCmd()
	rootCmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "posetrack -o <file.fbx> [-d id...]",
		Short: "record VR tracked device poses to an FBX animation",
		Long: "posetrack samples the pose of every selected tracked device until a key\n" +
			"is pressed and writes one animated node per device to an FBX file.\n" +
			"Single-dash long options (-list, -output) and -? are accepted.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runRoot,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "session archive directory")

	f := rootCmd.Flags()
	f.BoolVar(&listOnly, "list", false, "list tracked devices and exit")
	f.StringVarP(&output, "output", "o", "", "output FBX file")
	f.IntSliceVarP(&devices, "devices", "d", nil, "device ids to record, in output order (default: all)")
	f.StringVar(&driverName, "driver", config.DefaultDriver, "device driver")
	f.DurationVar(&duration, "duration", 0, "stop automatically after this long (0 waits for a key)")
	f.DurationVar(&tick, "tick", 0, "sampling interval (0 samples as fast as possible)")
	f.StringVar(&statusMode, "status", config.DefaultStatus, "status display: tui, plain or quiet")
	f.BoolVar(&noArchive, "no-archive", false, "do not archive the session")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "list archived sessions",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect [file.fbx]",
		Short: "show the tracks of a recorded FBX file",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectScene,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [session_id]",
		Short: "plot a device channel of an archived session",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSession,
	}
	plotCmd.Flags().IntVar(&plotDevice, "device", -1, "device id (default: first recorded)")
	plotCmd.Flags().StringVar(&plotField, "field", "", fmt.Sprintf("channel to plot, one of %v (default: all)", storage.Fields))

	exportCmd := &cobra.Command{
		Use:   "export-csv [session_id]",
		Short: "export an archived session as CSV with Euler angles",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCmd.Flags().StringVarP(&csvOutput, "output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(sessionsCmd, inspectCmd, plotCmd, exportCmd)
	return rootCmd
}

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = output
	}
	if flags.Changed("devices") {
		cfg.Devices = devices
	}
	if flags.Changed("driver") {
		cfg.Driver = driverName
	}
	if flags.Changed("duration") {
		cfg.Capture.MaxDuration = duration
	}
	if flags.Changed("tick") {
		cfg.Capture.TickInterval = tick
	}
	if flags.Changed("status") {
		cfg.Status = statusMode
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("no-archive") {
		cfg.Archive = !noArchive
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if cmd.Flags().NFlag() == 0 {
		return cmd.Help()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := driver.NewRegistry()
	if listOnly {
		return listDevices(ctx, registry, cfg)
	}
	return record(ctx, registry, cfg)
}

func listDevices(ctx context.Context, registry *driver.Registry, cfg *config.Config) error {
	rt, err := registry.Open(ctx, cfg.Driver, cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrRuntimeInit, err)
	}
	defer rt.Close()

	if cfg.Capture.Warmup > 0 {
		select {
		case <-time.After(cfg.Capture.Warmup):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	session.ListDevices(os.Stdout, rt)
	return nil
}

func record(ctx context.Context, registry *driver.Registry, cfg *config.Config) error {
	open := func(ctx context.Context) (device.Runtime, error) {
		return registry.Open(ctx, cfg.Driver, cfg)
	}

	s, err := session.Setup(ctx, open, session.Options{
		Output:   cfg.Output,
		Devices:  cfg.Devices,
		Capacity: cfg.Capture.Capacity,
		Warmup:   cfg.Capture.Warmup,
		Status:   os.Stdout,
		Loop: []capture.Option{
			capture.WithTickInterval(cfg.Capture.TickInterval),
			capture.WithMaxDuration(cfg.Capture.MaxDuration),
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	board := status.NewBoard(s.Selected())
	stop := make(chan struct{})
	var once sync.Once
	stopFn := func() { once.Do(func() { close(stop) }) }
	done := make(chan struct{})

	var wg sync.WaitGroup
	switch cfg.Status {
	case "tui":
		wg.Add(1)
		go func() {
			defer wg.Done()
			title := fmt.Sprintf("posetrack → %s", cfg.Output)
			if err := status.RunTUI(ctx, title, board, stopFn, done, cfg.Capture.RefreshRate); err != nil {
				log.Printf("status display: %v", err)
				fmt.Println("Press Enter to stop recording")
				go waitForEnter(stopFn)
			}
		}()
	case "plain":
		fmt.Println("Press Enter to stop recording")
		printer := status.NewPrinter(os.Stdout, board, cfg.Capture.RefreshRate)
		wg.Add(1)
		go func() {
			defer wg.Done()
			printer.Run(ctx, done)
		}()
		go waitForEnter(stopFn)
	default:
		fmt.Println("Press Enter to stop recording")
		go waitForEnter(stopFn)
	}

	stats, err := s.Record(ctx, stop, board)
	close(done)
	wg.Wait()
	if err != nil {
		return err
	}

	n, err := s.Emit()
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d tracks to %s (%d samples, %d dropped, %.2fs)\n",
		n, s.Output(), s.Set().Total(), stats.Drops, float64(stats.LastMs)/1000)

	if cfg.Archive {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return fmt.Errorf("failed to init storage: %w", err)
		}
		runID, err := st.Save(storage.SessionMetadata{
			Output:     s.Output(),
			Driver:     cfg.Driver,
			DurationMs: stats.LastMs,
			Ticks:      stats.Ticks,
			Drops:      stats.Drops,
		}, s.Descriptors(), s.Set())
		if err != nil {
			return fmt.Errorf("failed to archive session: %w", err)
		}
		fmt.Printf("session archived: %s\n", runID)
	}
	return nil
}

func waitForEnter(stop func()) {
	bufio.NewReader(os.Stdin).ReadString('\n')
	stop()
}

func listSessions(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no sessions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDURATION\tDEVICES\tDROPS\tOUTPUT")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%d\t%d\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			float64(run.DurationMs)/1000,
			len(run.Devices),
			run.Drops,
			run.Output,
		)
	}

	return w.Flush()
}

func inspectScene(cmd *cobra.Command, args []string) error {
	sc, err := scene.ReadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Println(status.Title.Render(args[0]))
	fmt.Printf("%s %d  %s %s  %s %s  %s %g\n\n",
		status.Label.Render("version"), sc.Version,
		status.Label.Render("creator"), sc.Creator,
		status.Label.Render("file id"), sc.FileID,
		status.Label.Render("unit scale"), sc.UnitScale,
	)

	if len(sc.Tracks) == 0 {
		fmt.Println(status.Subtle.Render("no tracks"))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRACK\tKEYS\tSTART\tEND")
	for _, t := range sc.Tracks {
		start, end := "-", "-"
		if times := t.Translation.X.Times(); len(times) > 0 {
			start = fmt.Sprintf("%.3fs", float64(times[0])/1000)
			end = fmt.Sprintf("%.3fs", float64(times[len(times)-1])/1000)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", t.Name, t.Keys(), start, end)
	}
	return w.Flush()
}

func plotSession(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := st.Resolve(args[0])
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	set, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if set.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	id := set.IDs()[0]
	if plotDevice >= 0 {
		id = device.ID(plotDevice)
	}
	seq, ok := set.Get(id)
	if !ok {
		return fmt.Errorf("device %d not recorded in session %s (recorded: %v)", id, runID, set.IDs())
	}
	if seq.Len() == 0 {
		return fmt.Errorf("device %d has no samples", id)
	}

	name := fmt.Sprintf("device %d", id)
	for _, d := range meta.Devices {
		if d.ID == int(id) {
			name = d.Name
		}
	}

	fmt.Printf("session: %s\n", meta.ID)
	fmt.Printf("device: %s\n", name)
	fmt.Printf("samples: %d\n\n", seq.Len())

	fields := storage.Fields
	if plotField != "" {
		fields = []string{plotField}
	}

	for _, field := range fields {
		data, err := storage.Series(seq, field)
		if err != nil {
			return err
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(field),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := st.Resolve(args[0])
	if err != nil {
		return err
	}
	set, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	if csvOutput == "" {
		return storage.ExportCSV(os.Stdout, set)
	}

	f, err := os.Create(csvOutput)
	if err != nil {
		return err
	}
	if err := storage.ExportCSV(f, set); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", csvOutput)
	return nil
}
