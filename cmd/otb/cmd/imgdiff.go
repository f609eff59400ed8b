package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitimage"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/sampletext"
)

var (
	geometry  string
	sampleKey string
)

var imgdiffCmd = &cobra.Command{
	Use:   "imgdiff <base-image> <image>...",
	Short: "Compare raw images with a baseline and print the differences as samples",
	Long: `Compare one or more raw images with a baseline image and print each
difference in sample file form. Images are packed bit arrays, least
significant bit of each byte first.

The geometry gives the three coordinate dimensions, outermost first:
rects x frames x bits for the frame family, rows x columns x bits per cell
for the fuse family.

Examples:
  otb imgdiff --geometry 4x32x64 --key CLB:SLICE0:FFEN:1 base.bin ffen.bin
  otb imgdiff -f fuse --geometry 40x16x2 --key FB:MC0:INV:1 blank.jed.bin inv.bin`,
	Args: cobra.MinimumNArgs(2),
	RunE: runImgdiff,
}

func init() {
	rootCmd.AddCommand(imgdiffCmd)

	imgdiffCmd.Flags().StringVarP(&geometry, "geometry", "g", "", "image geometry AxBxC")
	imgdiffCmd.Flags().StringVarP(&sampleKey, "key", "k", "", "sample key TILE:BEL:ATTR:VAL (the image index is appended when several images are given)")
	imgdiffCmd.MarkFlagRequired("geometry")
	imgdiffCmd.MarkFlagRequired("key")
}

func runImgdiff(cmd *cobra.Command, args []string) error {
	dims, err := parseGeometry(geometry)
	if err != nil {
		return err
	}
	key, err := samples.ParseKey(sampleKey)
	if err != nil {
		return err
	}
	switch cfg.Family {
	case bitcoord.Frames.Name:
		layout := bitimage.FrameLayout{Rects: dims[0], FramesPerRect: dims[1], BitsPerFrame: dims[2]}
		return imgdiffWith[bitcoord.FrameBit](layout, key, args)
	case bitcoord.Fuses.Name:
		layout := bitimage.FuseLayout{Rows: dims[0], Columns: dims[1], BitsPerCell: dims[2]}
		return imgdiffWith[bitcoord.FuseBit](layout, key, args)
	}
	return fmt.Errorf("unknown family %q", cfg.Family)
}

func imgdiffWith[C bitcoord.Coord[C]](layout bitimage.Layout[C], key samples.Key, paths []string) error {
	base, err := readImage(paths[0])
	if err != nil {
		return err
	}
	store := samples.NewStore[C]()
	session, err := bitimage.NewSession(layout, base, store)
	if err != nil {
		return err
	}
	for i, path := range paths[1:] {
		img, err := readImage(path)
		if err != nil {
			return err
		}
		k := key
		if len(paths) > 2 {
			k.Val = fmt.Sprintf("%s_%d", key.Val, i)
		}
		d, err := session.Record(k, img)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug("image compared", zap.String("file", path), zap.Int("bits", d.Len()))
		if err := sampletext.Format(os.Stdout, k, d); err != nil {
			return err
		}
	}
	return nil
}

func readImage(path string) (*bitimage.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return bitimage.FromBytes(data), nil
}

func parseGeometry(s string) ([3]uint32, error) {
	var dims [3]uint32
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 3 {
		return dims, fmt.Errorf("geometry %q is not AxBxC", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil || n == 0 {
			return dims, fmt.Errorf("geometry %q: bad dimension %q", s, p)
		}
		dims[i] = uint32(n)
	}
	return dims, nil
}
