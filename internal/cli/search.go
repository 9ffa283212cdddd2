package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/visual-search/internal/infrastructure"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *options) *cobra.Command {
	var (
		topK      int
		threshold float32
		shopID    int64
	)

	cmd := &cobra.Command{
		Use:   "search <file|url>",
		Short: "Find bouquets similar to a photo",
		Long: `Search the index with a local image file or an image URL.

Examples:
  vsctl search ./bouquet.jpg
  vsctl search https://cdn.example.com/products/42.jpg --top-k 5 --shop-id 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imageURL, imageBase64, err := imageArg(args[0])
			if err != nil {
				return err
			}

			req := &v1Http.SearchRequest{ImageURL: imageURL, ImageBase64: imageBase64}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &topK
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			if cmd.Flags().Changed("shop-id") {
				req.Filters = map[string]any{"shop_id": shopID}
			}

			res, err := opts.client.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, res)
			}

			printHits(out, color.New(color.FgGreen, color.Bold).Sprint("Exact"), res.Exact)
			printHits(out, color.New(color.FgYellow, color.Bold).Sprint("Similar"), res.Similar)
			fmt.Fprintf(out, "\n%d indexed, search took %dms\n", res.TotalIndexed, res.SearchTimeMs)
			if res.Degraded {
				fmt.Fprintln(out, color.RedString("metadata store unavailable, results are incomplete"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "number of nearest neighbours to request")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "minimum similarity score")
	cmd.Flags().Int64Var(&shopID, "shop-id", 0, "restrict results to a shop")

	return cmd
}

func printHits(w io.Writer, title string, hits []v1Http.SearchHitResponse) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(hits))
	for _, h := range hits {
		fmt.Fprintf(w, "  #%-8d %.4f  %s  %s\n", h.ProductID, h.Score, formatPrice(h.Price), h.Name)
	}
}

// formatPrice печатает цену в минимальных единицах как рубли с копейками.
func formatPrice(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, abs(minor%100))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// imageArg превращает аргумент команды в image_url или data URI из локального файла.
func imageArg(arg string) (string, string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		return arg, "", nil
	}

	dataURI, err := fileDataURI(arg)
	if err != nil {
		return "", "", err
	}

	return "", dataURI, nil
}

func fileDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	format, err := infrastructure.DetectImageFormat(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	return "data:" + format.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
