package interpret

import (
	"fmt"
	"strings"
)

// PromptContext carries the externally supplied listings rendered into the
// extraction prompt.
type PromptContext struct {
	UserMessage      string
	CategoryListing  string
	AccountListing   string
	PortfolioListing string
	CurrentDate      string
	LocalCurrency    string
}

// BuildPrompt deterministically renders the extraction instructions plus the
// current taxonomy, account and portfolio context into one prompt string.
// It has no side effects.
func BuildPrompt(pc PromptContext) string {
	userMessage := pc.UserMessage
	if strings.TrimSpace(userMessage) == "" {
		userMessage = "(No text message, only image)"
	}

	local := pc.LocalCurrency
	if local == "" {
		local = "IDR"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "You are a financial transaction parser for a user whose local currency is %s.\n", local)
	b.WriteString("Extract transaction details from the user's message and/or image (if provided).\n\n")

	fmt.Fprintf(&b, "CURRENT DATE: %s\n\n", pc.CurrentDate)
	fmt.Fprintf(&b, "VALID CATEGORIES:\n%s\n\n", pc.CategoryListing)
	fmt.Fprintf(&b, "VALID ACCOUNTS:\n%s\n\n", pc.AccountListing)
	fmt.Fprintf(&b, "CURRENT PORTFOLIO:\n%s\n\n", pc.PortfolioListing)

	b.WriteString("RULES:\n")
	fmt.Fprintf(&b, "1. Amount: Parse local shorthand (20k=20,000, 1.5jt=1,500,000) or USD formats ($100, 100 USD).\n")
	b.WriteString("2. Category/Subcategory: Use only from the provided list.\n")
	b.WriteString("3. Account (CRITICAL): You MUST only use account names from the VALID ACCOUNTS list above. Never invent or guess account names.\n")
	b.WriteString("   - If the user mentions an account not in the list, flag the transaction and use the closest match.\n")
	b.WriteString("   - If no account is mentioned, use a sensible default from the list based on transaction type.\n")
	b.WriteString("4. Transaction Kind:\n")
	b.WriteString("   - \"Expense\", \"Income\" for regular transactions.\n")
	b.WriteString("   - \"Transfer\" for money movement between two listed accounts (e.g., \"transfer 500k from BCA to Jago\").\n")
	b.WriteString("   - \"Trade_Buy\" when adding to an investment position (e.g., \"Buy 1000 ARCI at 350\").\n")
	b.WriteString("   - \"Trade_Sell\" when removing from an investment position (e.g., \"Sell 500 ARCI at 400\").\n")
	b.WriteString("5. Note: Include relevant details (ticker symbol, store name, etc.).\n")
	b.WriteString("6. Investment Details: If it's a trade, extract the Symbol, Shares, and Price per share.\n")
	b.WriteString("7. Transfer Details: For transfers, \"account\" is the SOURCE, \"destination_account\" is the TARGET. Both must be from VALID ACCOUNTS.\n")
	b.WriteString("8. Trade_Buy Account Flow (IMPORTANT):\n")
	b.WriteString("   - \"account\" = the investment account where the holding will live. Must be from VALID ACCOUNTS.\n")
	b.WriteString("   - \"source_account\" = the bank account the money comes from. Must be from VALID ACCOUNTS or null.\n")
	b.WriteString("   - If the investment account is not clear, set account to null.\n")
	b.WriteString("   - If source_account is not mentioned, set it to null.\n")
	b.WriteString("9. Currency Detection (IMPORTANT for Trade_Buy/Trade_Sell):\n")
	b.WriteString("   - Detect currency from the image or message context.\n")
	fmt.Fprintf(&b, "   - Local-market tickers (e.g., BBCA, ARCI, TLKM, BMRI) use %q.\n", local)
	b.WriteString("   - US/International tickers (e.g., AAPL, GOOGL, TSM, MSFT, NVDA) use \"USD\".\n")
	b.WriteString("   - Look for currency symbols ($, Rp), app interface language, or broker name.\n")
	b.WriteString("   - Common local brokers: Stockbit, Ajaib, IPOT, Mandiri Sekuritas, BCA Sekuritas.\n")
	b.WriteString("   - Common US brokers: Pluang, Robinhood, Interactive Brokers, Charles Schwab, Gotrade.\n")
	fmt.Fprintf(&b, "   - Default to %q if unclear.\n", local)
	b.WriteString("10. Flag transactions when uncertain or data is messy.\n\n")

	fmt.Fprintf(&b, "USER MESSAGE: %s\n\n", userMessage)

	b.WriteString("Respond ONLY with a single valid JSON object in this exact format, with no additional commentary:\n")
	fmt.Fprintf(&b, `{
    "amount": 400000,
    "category": "Investment",
    "subcategory": "Stocks",
    "account": "RDN Wallet - Jago",
    "destination_account": null,
    "source_account": null,
    "note": "Sell 1000 ARCI",
    "transaction_kind": "Trade_Sell",
    "investment_symbol": "ARCI",
    "shares": 1000,
    "price_per_share": 400,
    "currency": %q,
    "is_flagged": false,
    "flag_reason": null,
    "confidence": 0.95
}
`, local)

	return b.String()
}
