package orders

import "github.com/andresvel/commerce-sync/internal/inventory"

// ValidateStock compares every cart line against current stock. Pure: no
// store access, no side effects. A line is missing when it asks for more
// than is available; unknown products count as zero available.
func ValidateStock(cart []CartLine, products []inventory.Product) (ok bool, missing []inventory.StockShortfall) {
	byID := make(map[int]inventory.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, line := range cart {
		available := byID[line.ProductID].Stock
		if line.Qty > available {
			name := line.Name
			if p, found := byID[line.ProductID]; found && name == "" {
				name = p.Name
			}
			missing = append(missing, inventory.StockShortfall{
				ProductID: line.ProductID,
				Name:      name,
				Requested: line.Qty,
				Available: available,
			})
		}
	}
	return len(missing) == 0, missing
}
