package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bazarteer/bazaar/internal/api"
	"github.com/bazarteer/bazaar/internal/order"
)

var (
	orderProduct string
	orderSeller  string
	orderForm    order.Form
	orderDryRun  bool
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Buy a listing",
	Long: `Looks up the listing in the seller's catalogue, shows the price
breakdown and places the order. Billing details default to the ones saved
with 'bazaar setup'; card details are never stored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireLogin(); err != nil {
			return err
		}
		if orderProduct == "" || orderSeller == "" {
			return fmt.Errorf("--product and --seller are required")
		}
		listing, err := findListing(cmd, orderSeller, orderProduct)
		if err != nil {
			return err
		}
		product := order.ProductFromListing(listing)
		if product.SellerID == "" {
			product.SellerID = orderSeller
		}

		out := cmd.OutOrStdout()
		printQuote(out, product, order.QuoteFor(product.Price))
		if orderDryRun {
			return nil
		}

		form := withBillingDefaults(orderForm)
		// Surface missing fields before asking for confirmation.
		if err := form.Normalize().Validate(); err != nil {
			return err
		}
		ok, err := newPrompter(cmd).confirm("Place order?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Order cancelled.")
			return nil
		}

		q, err := order.NewPlacer(client, logger).Place(cmd.Context(), product, form)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Order placed. Charged €%.2f\n", q.Total)
		return nil
	},
}

func findListing(cmd *cobra.Command, sellerID, productID string) (api.Listing, error) {
	listings, err := client.ListingsByOwner(cmd.Context(), sellerID)
	if err != nil {
		return api.Listing{}, fmt.Errorf("loading listing: %w", err)
	}
	for _, l := range listings {
		if l.ID.String() == productID {
			return l, nil
		}
	}
	return api.Listing{}, fmt.Errorf("listing %s not found for seller %s", productID, sellerID)
}

// withBillingDefaults fills empty billing fields from the saved profile.
func withBillingDefaults(f order.Form) order.Form {
	b := GetProfile().Billing
	f.Email = firstNonEmpty(f.Email, b.Email)
	f.PostalCode = firstNonEmpty(f.PostalCode, b.PostalCode)
	f.City = firstNonEmpty(f.City, b.City)
	f.Country = firstNonEmpty(f.Country, b.Country)
	f.Telephone = firstNonEmpty(f.Telephone, b.Telephone)
	return f
}

func printQuote(w io.Writer, p order.Product, q order.Quote) {
	fmt.Fprintf(w, "%s\n\n", p.Title)
	row := func(label string, v float64) {
		fmt.Fprintf(w, "  %-12s €%8.2f\n", label, v)
	}
	row("Price", q.Price)
	row("Shipping", q.Shipping)
	row("Provision", q.Provision)
	row("Tax", q.Tax)
	fmt.Fprintln(w, "  ----------------------")
	row("Total", q.Total)
	fmt.Fprintln(w)
}

func init() {
	f := orderCmd.Flags()
	f.StringVar(&orderProduct, "product", "", "Listing ID")
	f.StringVar(&orderSeller, "seller", "", "Seller user ID")
	f.StringVar(&orderForm.Email, "email", "", "Billing email")
	f.StringVar(&orderForm.PostalCode, "postal-code", "", "Billing postal code")
	f.StringVar(&orderForm.City, "city", "", "Billing city")
	f.StringVar(&orderForm.Country, "country", "", "Billing country")
	f.StringVar(&orderForm.Telephone, "telephone", "", "Telephone")
	f.StringVar(&orderForm.CardNumber, "card", "", "Card number")
	f.StringVar(&orderForm.Expiry, "expiry", "", "Card expiry, MM/YY")
	f.StringVar(&orderForm.CVV, "cvv", "", "Card security code")
	f.BoolVar(&orderDryRun, "dry-run", false, "Only show the price breakdown")
	rootCmd.AddCommand(orderCmd)
}
