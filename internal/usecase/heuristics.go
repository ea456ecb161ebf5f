package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"MarketScanner/internal/canonical"
	"MarketScanner/internal/domain"
)

type categoryPattern struct {
	category string
	re       *regexp.Regexp
}

// capabilityPatterns are tried in order; every match becomes a capability of
// that category.
var capabilityPatterns = []categoryPattern{
	{"Integrations", regexp.MustCompile(`(?i)\b(zapier(?: integration)?|slack (?:integration|app)|(?:outgoing |event )?webhooks?|integrations? marketplace|app marketplace|native integrations?)\b`)},
	{"Security", regexp.MustCompile(`(?i)\b(sso|single sign[- ]on|saml sso|mfa|2fa|two[- ]factor auth(?:entication)?|multi[- ]factor authentication|encryption at rest|end[- ]to[- ]end encryption|audit (?:logs?|trails?))\b`)},
	{"Compliance", regexp.MustCompile(`(?i)\b(soc ?2|hipaa|gdpr|pci[- ]dss|iso ?27001|ccpa|fedramp)\b`)},
	{"API", regexp.MustCompile(`(?i)\b(rest(?:ful)? api|graphql(?: api)?|public api|open api|api access|sdks?|client librar(?:y|ies))\b`)},
	{"Performance", regexp.MustCompile(`(?i)\b(uptime sla|service level agreement|auto[- ]?scaling|elastic scaling|low latency|global cdn|edge caching)\b`)},
	{"Automation", regexp.MustCompile(`(?i)\b(workflow automation|automated workflows|automation rules|no[- ]code automation|scheduled jobs)\b`)},
	{"Analytics", regexp.MustCompile(`(?i)\b(real[- ]?time analytics|live analytics|custom dashboards|dashboard builder|custom reports|report builder|a/b testing|split testing|cohort analysis|funnel analysis)\b`)},
	{"Permissions", regexp.MustCompile(`(?i)\b(rbac|role[- ]based access control|role based permissions|granular permissions|user roles|scim(?: provisioning)?|user provisioning)\b`)},
	{"Growth", regexp.MustCompile(`(?i)\b(referral program|refer a friend|affiliate program|free trial|freemium|onboarding flows?)\b`)},
}

var vendorPattern = regexp.MustCompile(`(?i)\b(salesforce|hubspot|slack|zapier|shopify|stripe|quickbooks|xero|google workspace|microsoft teams|jira|github|gitlab|zendesk|intercom|mailchimp|twilio|okta|snowflake|segment|notion|asana|trello|dropbox|paypal|netsuite)\b`)

var vendorNames = map[string]string{
	"salesforce": "Salesforce", "hubspot": "HubSpot", "slack": "Slack", "zapier": "Zapier",
	"shopify": "Shopify", "stripe": "Stripe", "quickbooks": "QuickBooks", "xero": "Xero",
	"google workspace": "Google Workspace", "microsoft teams": "Microsoft Teams", "jira": "Jira",
	"github": "GitHub", "gitlab": "GitLab", "zendesk": "Zendesk", "intercom": "Intercom",
	"mailchimp": "Mailchimp", "twilio": "Twilio", "okta": "Okta", "snowflake": "Snowflake",
	"segment": "Segment", "notion": "Notion", "asana": "Asana", "trello": "Trello",
	"dropbox": "Dropbox", "paypal": "PayPal", "netsuite": "NetSuite",
}

var compliancePattern = regexp.MustCompile(`(?i)\b(soc ?2|hipaa|gdpr|pci[- ]dss|iso ?27001|baa)\b`)

var pricePattern = regexp.MustCompile(`(?i)([$€£])\s?(\d+(?:,\d{3})*)(?:\.(\d{1,2}))?\s*(?:(?:/|per)\s*(?:user\s*/?\s*|seat\s*/?\s*)?(month|mo|year|yr|annum)|(monthly|annually|yearly|one[- ]time))?`)

const (
	maxPricingPoints = 20
	maxPlanNameLen   = 40
	pricingLookahead = 500
)

// extractWithRegex is the heuristic fallback used when AI extraction is
// unavailable or fails.
func extractWithRegex(title, text string) extractedFacts {
	facts := extractedFacts{
		Capabilities: extractCapabilities(text),
		Integrations: extractVendors(text),
	}
	for _, fw := range extractCompliance(text) {
		facts.Compliance = append(facts.Compliance, rawCompliance{Framework: fw})
	}
	if looksLikePricingPage(title, text) {
		facts.Pricing = parsePricing(text)
	}
	return facts
}

// extractCapabilities returns canonical capabilities, unique per (category, normalized).
func extractCapabilities(text string) []rawCapability {
	seen := make(map[string]struct{})
	var out []rawCapability
	for _, p := range capabilityPatterns {
		for _, m := range p.re.FindAllString(text, -1) {
			name, normalized := canonical.CanonicalCapability(m)
			if p.category == "Compliance" {
				name = complianceFramework(m)
				normalized = canonical.Normalize(name)
			}
			if normalized == "" {
				continue
			}
			key := p.category + "\x00" + normalized
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rawCapability{Category: p.category, Name: name, Normalized: normalized, Raw: strings.TrimSpace(m)})
		}
	}
	return out
}

func extractVendors(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range vendorPattern.FindAllString(text, -1) {
		key := strings.ToLower(strings.Join(strings.Fields(m), " "))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		name, ok := vendorNames[key]
		if !ok {
			name = canonical.Canonicalize(m)
		}
		out = append(out, name)
	}
	return out
}

func extractCompliance(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range compliancePattern.FindAllString(text, -1) {
		fw := complianceFramework(m)
		if _, dup := seen[fw]; dup {
			continue
		}
		seen[fw] = struct{}{}
		out = append(out, fw)
	}
	return out
}

func complianceFramework(match string) string {
	key := strings.NewReplacer(" ", "", "-", "").Replace(strings.ToLower(match))
	switch key {
	case "soc2":
		return "SOC 2"
	case "pcidss":
		return "PCI-DSS"
	case "iso27001":
		return "ISO 27001"
	default:
		return strings.ToUpper(key)
	}
}

func looksLikePricingPage(title, text string) bool {
	head := text
	if len(head) > pricingLookahead {
		head = head[:pricingLookahead]
	}
	probe := strings.ToLower(title + " " + head)
	for _, marker := range []string{"pricing", "plan", "fee"} {
		if strings.Contains(probe, marker) {
			return true
		}
	}
	return false
}

// parsePricing reads plan prices line by line. The plan name is the nearest
// preceding short line without a price, or the text before the price on the
// same line.
func parsePricing(text string) []domain.PricingPoint {
	var (
		out      []domain.PricingPoint
		lastPlan string
		seen     = make(map[string]struct{})
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		matches := pricePattern.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 {
			if len(line) <= maxPlanNameLen {
				lastPlan = line
			}
			continue
		}

		for _, m := range matches {
			amount, ok := parseAmount(line[m[4]:m[5]], submatch(line, m, 3))
			if !ok {
				continue
			}
			plan := lastPlan
			if prefix := strings.Trim(strings.TrimSpace(line[:m[0]]), ":-– "); prefix != "" && len(prefix) <= maxPlanNameLen {
				plan = prefix
			}
			if plan == "" {
				plan = "Plan " + strconv.Itoa(len(out)+1)
			}

			key := strings.ToLower(plan) + "\x00" + strconv.FormatFloat(amount, 'f', 2, 64)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			out = append(out, domain.PricingPoint{
				Plan:     plan,
				Amount:   amount,
				Currency: currencyCode(line[m[2]:m[3]]),
				Period:   pricingPeriod(submatch(line, m, 4) + submatch(line, m, 5)),
			})
			if len(out) == maxPricingPoints {
				return out
			}
		}
	}
	return out
}

func submatch(line string, m []int, group int) string {
	start, end := m[2*group], m[2*group+1]
	if start < 0 {
		return ""
	}
	return line[start:end]
}

func parseAmount(whole, cents string) (float64, bool) {
	raw := strings.ReplaceAll(whole, ",", "")
	if cents != "" {
		raw += "." + cents
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func currencyCode(symbol string) string {
	switch symbol {
	case "€":
		return "EUR"
	case "£":
		return "GBP"
	default:
		return "USD"
	}
}

func pricingPeriod(raw string) domain.PricingPeriod {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "month", "mo", "monthly":
		return domain.PeriodMonth
	case "year", "yr", "annum", "annually", "yearly":
		return domain.PeriodYear
	case "one-time", "one time":
		return domain.PeriodOneTime
	default:
		return domain.PeriodUnknown
	}
}
