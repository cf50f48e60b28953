package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/airtouch/internal/logging"
	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/protocol/legacy"
)

var fromClient bool

func init() {
	decodeCmd.Flags().BoolVar(&fromClient, "from-client", false, "Frames were sent by a client rather than the gateway")
	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode <file>...",
	Short: "Decode captured frames",
	Long: `Decode files written by 'airtouch monitor --dump-dir', or any capture of
gateway traffic. Files holding a single 395-byte response without the
framed protocol's magic bytes are decoded as legacy responses; everything
else is read as a sequence of framed messages.`,
	Example: `  airtouch decode captures/message_*.dump`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed int
		for _, path := range args {
			if err := decodeFile(cmd.Context(), os.Stdout, path); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be decoded", failed, len(args))
		}
		return nil
	},
}

func decodeFile(ctx context.Context, w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	log.Debug("Decoding", zap.String("path", path), logging.HexBytes("data", data))
	fmt.Fprintf(w, "== %s (%d bytes)\n", path, len(data))

	if len(data) == legacy.ResponseLength && !bytes.HasPrefix(data, []byte{protocol.Magic, protocol.Magic}) {
		return decodeLegacy(w, data)
	}
	return decodeFramed(ctx, w, data)
}

func decodeLegacy(w io.Writer, data []byte) error {
	if !legacy.ValidChecksum(data) {
		fmt.Fprintln(w, "   warning: checksum mismatch")
	}
	info, err := legacy.DecodeResponse(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "   system %q, touchpad %d°C\n", info.SystemName, info.TouchpadTemp)
	for _, ac := range info.ACs {
		fmt.Fprintf(w, "   %s\n", ac)
	}
	for _, g := range info.Groups {
		fmt.Fprintf(w, "   %s\n", g)
	}
	for _, warning := range info.Warnings {
		fmt.Fprintf(w, "   warning: %s\n", warning)
	}
	return nil
}

func decodeFramed(ctx context.Context, w io.Writer, data []byte) error {
	dir := protocol.FromGateway
	if fromClient {
		dir = protocol.FromClient
	}
	src := protocol.NewReaderSource(bytes.NewReader(data))

	var frames int
	for {
		frame, err := protocol.ReadFrame(ctx, src, dir)
		switch {
		case errors.Is(err, io.EOF):
			if frames == 0 {
				return errors.New("no frames found")
			}
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			fmt.Fprintln(w, "   truncated frame at end of file")
			return nil
		case protocol.IsRecoverable(err):
			fmt.Fprintf(w, "   dropped: %v\n", err)
			continue
		case err != nil:
			return err
		}

		frames++
		if frame.Skipped > 0 {
			fmt.Fprintf(w, "   skipped %d bytes\n", frame.Skipped)
		}
		msg, err := protocol.DecodeMessage(frame)
		if err != nil {
			fmt.Fprintf(w, "   %s: %v\n", frame, err)
			continue
		}
		fmt.Fprintf(w, "   %s %s\n", frame, msg)
	}
}
