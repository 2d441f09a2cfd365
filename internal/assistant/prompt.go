package assistant

// companyData is the knowledge base handed to the model as part of the
// system prompt. Kept as raw JSON so the catalog can be updated without
// touching prompt wording.
const companyData = `{
  "company": {
    "name": "Eco Packaging Products Inc. (BagStory USA)",
    "headquarters": "New York, USA",
    "productionBase": "China",
    "certification": "ISO 9001:2000",
    "website": "https://bagstoryusa.com",
    "businessPhilosophy": [
      "Customer-centricity",
      "Innovation",
      "Ethics and social responsibility",
      "Continuous improvement"
    ],
    "sustainability": {
      "circularEconomy": true,
      "recyclingProgram": true,
      "lowCarbonLogistics": true
    },
    "coreStrengths": [
      "Self-built vertical production ecosystem with circular economy model",
      "Comprehensive East Coast US distribution and warehouse system",
      "Flexible small-batch order consolidation services",
      "Strategic freight partnerships for global logistics advantages",
      "Expert customs clearance and transport management"
    ]
  },
  "products": [
    {"id": 1, "name": "Wine Vest Bag (1/2 Two Bottle Wine Bag)", "size": "19.5H x 8W x 4GW in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 1000, "price": {"1-5 Cases": 0.10, "6-50 Cases": 0.09, "50+ Cases": "Contact office"}, "use": "Wine & Liquor Bags"},
    {"id": 2, "name": "Small Vest Bag (1/10 Small)", "size": "16H x 8W x 4GW in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 1000, "price": {"1-5 Cases": 0.10, "6-50 Cases": 0.09, "50+ Cases": "Contact office"}, "use": "Beer, Snacks, Deli's"},
    {"id": 3, "name": "Medium Vest Bag (1/8 Medium)", "size": "18H x 10W x 5GW in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 1000, "price": {"1-5 Cases": 0.11, "6-50 Cases": 0.09, "50+ Cases": "Contact office"}, "use": "6-pack, Deli, Liquor store"},
    {"id": 4, "name": "Large Vest Bag (1/6 Medium Duty)", "size": "22H x 11.8W x 7GW in", "color": ["Black", "White", "Green", "Yellow"], "material": "Premium Non-Woven", "caseQty": 600, "price": {"1-5 Cases": 0.12, "6-50 Cases": 0.10, "50+ Cases": "Contact office"}, "use": "Deli & Supermarkets"},
    {"id": 5, "name": "Large+ Vest Bag (1/6 Plus, A Bit Larger)", "size": "22.5H x 13W x 7GW in", "color": ["Black", "White"], "material": "Premium Non-Woven", "caseQty": 500, "price": {"1-5 Cases": 0.13, "6-50 Cases": 0.11, "50+ Cases": "Contact office"}, "use": "Mini Mart, Supermarket"},
    {"id": 6, "name": "2X-Large Vest Bag (1/4 XX-Large)", "size": "23.5H x 18.7W x 7GW in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 400, "price": {"1-5 Cases": 0.20, "6-50 Cases": 0.18, "50+ Cases": "Contact office"}, "use": "Supermarket, 99 cent stores"},
    {"id": 7, "name": "Jumbo Size (Supersized Jumbo)", "size": "29H x 18W x 7GW in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 1500, "price": {"1-5 Bundles": 0.21, "5+ Bundles": 0.19, "50+ Bundles": "Contact office"}, "use": "99 cent Store, Wholesaler, Supermarket"},
    {"id": 8, "name": "Heavy Duty Large Vest Bag (1/6 Large)", "size": "22H x 11.8W x 7D in", "color": "White", "material": "Premium Non-Woven", "caseQty": 500, "price": {"1-5 Cases": 0.16, "6-50 Cases": 0.135, "50+ Cases": "Contact office"}, "use": "Heavy duty, supports 50 lbs"},
    {"id": 9, "name": "Die Cut Handle", "size": "15H x 11W in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 1000, "price": {"1-5 Cases": 0.11, "6-50 Cases": 0.10, "50+ Cases": "Contact office"}, "use": "Book store, Game shops"},
    {"id": 10, "name": "2 Bottle Wine Tote Bag", "size": "14H x 8W x 4D in", "color": "Grey", "material": "Premium Non-Woven", "caseQty": 400, "price": {"1-5 Cases": 0.18, "6-50 Cases": 0.17, "50+ Cases": "Contact office"}, "use": "Liquor stores"},
    {"id": 11, "name": "Large 1/6 Tote Bag", "size": "14H x 11.5W x 7D in", "color": "Grey", "material": "Premium Non-Woven", "caseQty": 300, "price": {"1-5 Cases": 0.22, "6-50 Cases": 0.20, "50+ Cases": "Contact office"}, "use": "Grocery/Deli"},
    {"id": 12, "name": "Jumbo Grocery Tote Bag", "size": "15H x 14W x 8GW in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 300, "price": {"1-5 Cases": 0.25, "6-50 Cases": 0.23, "50+ Cases": "Contact office"}, "use": "Retail/Supermarket"},
    {"id": 13, "name": "Thermal Insulated Tote Bag", "size": "15H x 13W x 10D in", "color": ["Black", "White", "Green", "Yellow"], "material": "Premium Non-Woven", "caseQty": 100, "note": "Patented smart fabric multi layered and coated thermal film bag", "price": {"1-5 Cases": 3.50, "6-50 Cases": 3.00}, "use": "Lunch, Delivery, Groceries"},
    {"id": 14, "name": "Heavy Duty Grocery Tote Bag", "size": "15H x 13W x 10D in", "color": "Black", "material": "Premium Non-Woven", "caseQty": 100, "note": "PVC board on bottom, hand stitched", "price": {"1-5 Cases": 2.50, "6-50 Cases": 2.00, "50+ Cases": "Contact office"}, "use": "Everyday shopping bag"},
    {"id": 15, "name": "6 Bottle Wine Bag", "size": "15H x 11W x 8.5GW in", "color": ["Black", "Red Burgundy"], "material": "Premium Non-Woven", "caseQty": 100, "note": "6 bottle carrier with separator and PVC board, Hand Stitched", "price": {"1 Case": 200.00, "50+ Cases": "Contact office"}, "use": "Liquor Store"},
    {"id": 16, "name": "Mylar Film Gift Bag", "size": "20H x 9.5W in", "color": "White Flash", "material": "PVC Film", "caseQty": 500, "note": "Ribbon not included", "price": {"1-5 Cases": 0.60, "6-50 Cases": 0.50, "50+ Cases": "Contact office"}, "use": "Wine Gift Bag"}
  ]
}`

func systemPrompt() string {
	return `You are EcoBuddy, a helpful assistant for Eco Packaging Products Inc. (BagStory USA), ` +
		`an e-commerce packaging company. Use the following company and product information to ` +
		`answer user inquiries accurately:

` + companyData + `

Provide detailed and accurate responses based on this information. If the user asks about ` +
		`something not covered in the data, respond politely and suggest they contact the support ` +
		`team by typing "talk to human".`
}
