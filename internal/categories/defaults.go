package categories

import "github.com/bankfeed-dev/bankfeed/internal/model"

// DefaultCategories returns the starter category set for a new workspace.
func DefaultCategories() []model.Category {
	return []model.Category{
		{ID: 1, Name: "Groceries", Description: "Supermarkets and food stores"},
		{ID: 2, Name: "Dining", Description: "Restaurants, cafes, takeout"},
		{ID: 3, Name: "Subscriptions", Description: "Streaming and recurring services"},
		{ID: 4, Name: "Transport", Description: "Fuel, transit, rideshare"},
		{ID: 5, Name: "Utilities", Description: "Power, water, internet, phone"},
		{ID: 6, Name: "Housing", Description: "Rent, mortgage, maintenance"},
		{ID: 7, Name: "Health", Description: "Pharmacy, medical, fitness"},
		{ID: 8, Name: "Shopping", Description: "General retail"},
		{ID: 9, Name: "Travel", Description: "Flights, hotels, vacation"},
		{ID: 10, Name: "Income", Description: "Salary and other deposits"},
		{ID: 11, Name: "Other", Description: "Anything uncategorized"},
	}
}
