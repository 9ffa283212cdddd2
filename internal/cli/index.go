package cli

import (
	"errors"
	"fmt"
	"strconv"

	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newIndexCmd(opts *options) *cobra.Command {
	var (
		req       v1Http.IndexRequest
		imageFile string
		shopID    int64
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a single product",
		Long: `Index one product from an image URL or a local image file.

Examples:
  vsctl index --id 42 --image-url https://cdn.example.com/products/42.jpg --name "25 roses" --price 950000
  vsctl index --id 43 --image-file ./43.png --name "Peonies" --price 1200000 --colors pink,white`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (req.ImageURL == "") == (imageFile == "") {
				return errors.New("exactly one of --image-url and --image-file is required")
			}
			if imageFile != "" {
				dataURI, err := fileDataURI(imageFile)
				if err != nil {
					return err
				}
				req.ImageBase64 = dataURI
			}
			if cmd.Flags().Changed("shop-id") {
				req.ShopID = &shopID
			}

			res, err := opts.client.Index(cmd.Context(), &req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, res)
			}

			fmt.Fprintf(out, "%s product %d (vector %s) at %s\n",
				color.GreenString("Indexed"), res.ProductID, res.VectorID, res.IndexedAt)
			return nil
		},
	}

	cmd.Flags().Int64Var(&req.ProductID, "id", 0, "product ID")
	cmd.Flags().StringVar(&req.ImageURL, "image-url", "", "image URL")
	cmd.Flags().StringVar(&imageFile, "image-file", "", "local image file, uploaded as base64")
	cmd.Flags().StringVar(&req.Name, "name", "", "product name")
	cmd.Flags().Int64Var(&req.Price, "price", 0, "price in minor units")
	cmd.Flags().StringSliceVar(&req.Colors, "colors", nil, "colors")
	cmd.Flags().StringSliceVar(&req.Occasions, "occasions", nil, "occasions")
	cmd.Flags().StringSliceVar(&req.Tags, "tags", nil, "tags")
	cmd.Flags().Int64Var(&shopID, "shop-id", 0, "shop ID")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Remove a product from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			res, err := opts.client.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, res)
			}

			fmt.Fprintf(out, "%s product %d\n", color.GreenString("Deleted"), res.ProductID)
			return nil
		},
	}
}

// batchTotals итог по всем обработанным страницам каталога.
type batchTotals struct {
	pages   int
	total   int
	indexed int
	failed  int
	errors  []v1Http.BatchItemError
}

func (t *batchTotals) add(res *v1Http.BatchIndexResponse) {
	t.pages++
	t.total += res.Total
	t.indexed += res.Indexed
	t.failed += res.Failed
	t.errors = append(t.errors, res.Errors...)
}

func newBatchIndexCmd(opts *options) *cobra.Command {
	var (
		limit  int
		offset int
		shopID int64
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "batch-index",
		Short: "Index products from the catalog",
		Long: `Index one page of the catalog, or every page with --all.
With --all pages are requested until the catalog returns a short page.

Examples:
  vsctl batch-index --limit 100 --offset 200
  vsctl batch-index --all --shop-id 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			req := &v1Http.BatchIndexRequest{Source: "catalog", Limit: limit, Offset: offset}
			if cmd.Flags().Changed("shop-id") {
				req.ShopID = &shopID
			}

			out := cmd.OutOrStdout()
			if !all {
				res, err := opts.client.BatchIndex(cmd.Context(), req)
				if err != nil {
					return err
				}
				if opts.json {
					return printJSON(out, res)
				}

				var totals batchTotals
				totals.add(res)
				printBatchTotals(cmd, &totals)
				return nil
			}

			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing catalog[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)

			var totals batchTotals
			for {
				res, err := opts.client.BatchIndex(cmd.Context(), req)
				if err != nil {
					_ = bar.Finish()
					return fmt.Errorf("page at offset %d: %w", req.Offset, err)
				}

				totals.add(res)
				_ = bar.Add(res.Total)

				if res.Total < req.Limit {
					break
				}
				req.Offset += req.Limit
			}
			_ = bar.Finish()

			if opts.json {
				return printJSON(out, map[string]any{
					"pages":   totals.pages,
					"total":   totals.total,
					"indexed": totals.indexed,
					"failed":  totals.failed,
					"errors":  totals.errors,
				})
			}

			printBatchTotals(cmd, &totals)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "catalog offset to start from")
	cmd.Flags().Int64Var(&shopID, "shop-id", 0, "restrict to a shop")
	cmd.Flags().BoolVar(&all, "all", false, "walk every catalog page")

	return cmd
}

func printBatchTotals(cmd *cobra.Command, t *batchTotals) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Pages:    %d\n", t.pages)
	fmt.Fprintf(out, "Products: %d\n", t.total)
	fmt.Fprintf(out, "Indexed:  %s\n", color.GreenString("%d", t.indexed))
	if t.failed == 0 {
		fmt.Fprintf(out, "Failed:   0\n")
		return
	}

	fmt.Fprintf(out, "Failed:   %s\n", color.RedString("%d", t.failed))
	for _, ie := range t.errors {
		fmt.Fprintf(out, "  - #%d: %s\n", ie.ProductID, ie.Error)
	}
}
