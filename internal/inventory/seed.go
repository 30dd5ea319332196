package inventory

// Default catalog seeded when inventory_db does not exist yet.
var SeedCatalog = []Product{
	{ID: 1, Name: "Laptop Gamer Legion", PriceCents: 125000, Stock: 10},
	{ID: 2, Name: "Teclado Mecanico RGB", PriceCents: 8500, Stock: 50},
	{ID: 3, Name: "Mouse Wireless Pro", PriceCents: 4500, Stock: 20},
	{ID: 4, Name: "Monitor 4K UltraWide", PriceCents: 35000, Stock: 5},
	{ID: 5, Name: "Headset 7.1 Surround", PriceCents: 6000, Stock: 15},
	{ID: 6, Name: "Silla Ergonomica", PriceCents: 19000, Stock: 8},
	{ID: 7, Name: "Webcam Streaming 1080p", PriceCents: 7000, Stock: 12},
}
