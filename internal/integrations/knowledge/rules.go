package knowledge

// BusinessRules are the fixed facts every index carries regardless of the
// ingested documents.
func BusinessRules() []Document {
	return []Document{
		{
			ID:     "rule:financing",
			Source: "business_rules",
			Topic:  "financing",
			Role:   "all",
			Text:   "F&L Design Builders Financing Option: We offer an exclusive 8-Months Same-As-Cash financing program. Approvals take minutes. Do NOT mention 6 or 12 months.",
		},
		{
			ID:     "rule:homeowner",
			Source: "sales_strategy",
			Topic:  "sales_psychology",
			Role:   "homeowner",
			Text:   "For Homeowners: Focus on Vision, Dreams, and Lifestyle. Always offer the $300 Design Coupon as a lead magnet. Use a warm, supportive tone.",
		},
		{
			ID:     "rule:realtor",
			Source: "sales_strategy",
			Topic:  "sales_psychology",
			Role:   "realtor",
			Text:   "For Realtors & Investors: Focus on ROI, Speed, Curb Appeal, and Pre-Listing Packages. Do NOT offer the $300 coupon to them. Instead, offer Priority Scheduling and the Partner Referral Commission (1% on closed deals). Talk efficiently and professionally.",
		},
		{
			ID:     "rule:pre-listing",
			Source: "services",
			Topic:  "services",
			Role:   "realtor",
			Text:   "Realtor Pre-Listing Package: Includes quick paint refresh, lighting updates, and minor repairs to maximize sale price. Completed in under 2 weeks.",
		},
		{
			ID:     "rule:venicasa",
			Source: "partnerships",
			Topic:  "partnerships",
			Role:   "all",
			Text:   "Partnership with Venicasa: Exclusive collaboration for Luxury Italian Furniture. We cross-sell furniture during interior design projects.",
		},
	}
}
