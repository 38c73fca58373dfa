package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"apron/player"
	"apron/playlist"
	"apron/providers"
	"apron/tracks"
	"apron/utils"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func defaultConfigPath() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(userConfigDir, "apron", "config.yaml")
}

func newRootCmd(fsys afero.Fs) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "apron",
		Short:         "Drive a desktop media player from a playlist and publish its subtitles or lyrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(fsys, configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the daemon until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(fsys, configPath)
		},
	})
	root.AddCommand(newConvertCmd(fsys))
	root.AddCommand(newLyricsCmd(fsys))
	root.AddCommand(&cobra.Command{
		Use:   "resolve",
		Short: "Print the playlist resolved from the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ParseConfig(fsys, configPath)
			if err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
			resolved, err := config.Resolve(fsys)
			if err != nil {
				return err
			}
			return printResolved(cmd.OutOrStdout(), resolved)
		},
	})
	return root
}

func newConvertCmd(fsys afero.Fs) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "convert <file.srt>",
		Short: "Convert SRT subtitles to WebVTT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := afero.ReadFile(fsys, args[0])
			if err != nil {
				return err
			}
			vtt := utils.SrtToWebVtt(providers.Decode(b))
			if output == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), vtt)
				return err
			}
			return afero.WriteFile(fsys, output, []byte(vtt), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newLyricsCmd(fsys afero.Fs) *cobra.Command {
	var at float64
	cmd := &cobra.Command{
		Use:   "lyrics <file.lrc>",
		Short: "Print timed lyric lines, marking the line active at --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := afero.ReadFile(fsys, args[0])
			if err != nil {
				return err
			}
			lines := utils.ParseLrc(providers.Decode(b))
			if lines.Len() == 0 {
				return tracks.ErrNotSynced
			}
			active := -1
			if cmd.Flags().Changed("at") {
				active = lines.ActiveIndex(at)
			}
			out := cmd.OutOrStdout()
			for i, line := range lines {
				marker := "  "
				if i == active {
					marker = "> "
				}
				fmt.Fprintf(out, "%s[%s] %s\n", marker, utils.FormatDisplayTime(line.Time), line.Text)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "playback position in seconds")
	return cmd
}

func printResolved(w io.Writer, resolved *playlist.Resolved) error {
	if !resolved.Playable() {
		_, err := fmt.Fprintln(w, "nothing playable")
		return err
	}
	b := &strings.Builder{}
	for i := range resolved.Len() {
		item, _ := resolved.Item(i)
		b.WriteString(utils.FormatItem(&item, i))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func serve(fsys afero.Fs, configPath string) error {
	config, err := ParseConfig(fsys, configPath)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	slog.SetLogLoggerLevel(config.LogLevel)
	if config.Preload != "" {
		slog.Debug("preload is left to the player", "preload", config.Preload)
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	defer conn.Close()

	var cache tracks.Cache
	if config.UseCache {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("failed to get user cache directory: %w", err)
		}
		c, err := NewCache(fsys, filepath.Join(userCacheDir, "apron"))
		if err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
		cache = c
	}

	resolved, err := config.Resolve(fsys)
	if err != nil {
		return err
	}
	if !resolved.Playable() {
		slog.Warn("nothing playable")
	}

	entries := make([]*PublisherEntry, 0, len(config.Publishers))
	for _, p := range config.Publishers {
		publisher, err := CreatePublisher(p, conn)
		if err != nil {
			slog.Warn(err.Error())
			continue
		}
		entries = append(entries, NewPublisherEntry(publisher, p.Offset))
	}

	ctrl := player.New(resolved, player.Options{
		Autoplay:     config.Autoplay,
		Muted:        config.Muted,
		Volume:       config.Volume,
		PlaybackRate: config.PlaybackRate,
	})
	if config.Volume == 0 {
		ctrl.SetVolume(0)
	}
	controller := NewController(&ControllerOptions{
		player:       ctrl,
		provider:     config.Providers,
		publishers:   entries,
		kind:         config.Kind,
		primaryColor: config.PrimaryColor,
		fetchTimeout: config.FetchTimeout,
		filters:      config.Filters,
		urlBlacklist: config.URLBlacklist,
		cache:        cache,
	})
	controller.Serve()

	mpris := NewMPRIS(conn, config.Player, config.Loop)
	err = mpris.Connect()
	if err != nil {
		controller.Exit()
		return err
	}
	go func() {
		err := mpris.Serve()
		if err != nil {
			slog.Error("failed to listen for player signals", "error", err)
		}
	}()
	detach, err := ctrl.Attach(mpris)
	if err != nil {
		controller.Exit()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if config.SourceFile != "" {
		err = watchFile(ctx, config.SourceFile, func() {
			resolved, err := config.Resolve(fsys)
			if err != nil {
				slog.Warn("failed to reload source", "error", err)
				return
			}
			slog.Info("source reloaded", "items", resolved.Len())
			ctrl.SetSource(resolved)
		})
		if err != nil {
			slog.Warn("failed to watch source file", "error", err, "path", config.SourceFile)
		}
	}

	<-ctx.Done()
	slog.Info("shutting down")
	detach()
	mpris.Exit()
	controller.Exit()
	return nil
}
