package catalog

import "ms-grouporder/internal/models"

func seedData() ([]models.Category, []models.Product) {
	categories := []models.Category{
		{ID: "cat-fruits", Name: "Fruits & Vegetables", Image: "🥦", Description: "Fresh produce delivered daily"},
		{ID: "cat-dairy", Name: "Dairy & Bakery", Image: "🥛", Description: "Milk, bread, eggs and more"},
		{ID: "cat-snacks", Name: "Snacks & Beverages", Image: "🍿", Description: "Chips, biscuits, juices and soft drinks"},
		{ID: "cat-pantry", Name: "Pantry Staples", Image: "🍚", Description: "Rice, flour, oil and spices"},
		{ID: "cat-personal", Name: "Personal Care", Image: "🧴", Description: "Soaps, shampoos, toothpaste, and hygiene products"},
	}

	products := []models.Product{
		{ID: "prod-banana", Name: "Bananas", Description: "Ripe yellow bananas", Price: 40, Image: "🍌", CategoryID: "cat-fruits", InStock: true, Unit: "dozen"},
		{ID: "prod-apple", Name: "Apples", Description: "Crisp red apples", Price: 120, OriginalPrice: 150, Image: "🍎", CategoryID: "cat-fruits", InStock: true, Unit: "kg"},
		{ID: "prod-tomato", Name: "Tomatoes", Description: "Farm fresh tomatoes", Price: 30, Image: "🍅", CategoryID: "cat-fruits", InStock: true, Unit: "kg"},
		{ID: "prod-milk", Name: "Milk", Description: "Full cream milk", Price: 60, Image: "🥛", CategoryID: "cat-dairy", InStock: true, Unit: "litre"},
		{ID: "prod-bread", Name: "Whole Wheat Bread", Description: "Freshly baked loaf", Price: 45, Image: "🍞", CategoryID: "cat-dairy", InStock: true, Unit: "loaf"},
		{ID: "prod-eggs", Name: "Eggs", Description: "Free range eggs", Price: 84, Image: "🥚", CategoryID: "cat-dairy", InStock: true, Unit: "dozen", MinQuantity: 1},
		{ID: "prod-chips", Name: "Potato Chips", Description: "Classic salted", Price: 20, Image: "🥔", CategoryID: "cat-snacks", InStock: true, Unit: "pack"},
		{ID: "prod-juice", Name: "Orange Juice", Description: "No added sugar", Price: 110, Image: "🧃", CategoryID: "cat-snacks", InStock: true, Unit: "litre"},
		{ID: "prod-rice", Name: "Basmati Rice", Description: "Long grain aged rice", Price: 150, Image: "🍚", CategoryID: "cat-pantry", InStock: true, Unit: "kg"},
		{ID: "prod-oil", Name: "Sunflower Oil", Description: "Refined cooking oil", Price: 180, Image: "🫙", CategoryID: "cat-pantry", InStock: true, Unit: "litre"},
		{ID: "prod-spoons", Name: "Stainless Steel Spoons", Description: "Set of 6 tablespoons", Price: 8.99, Image: "🥄", CategoryID: "cat-pantry", InStock: true, Unit: "set"},
		{ID: "prod-soap", Name: "Dove Soap", Description: "Moisturizing beauty bar", Price: 1.99, Image: "🧼", CategoryID: "cat-personal", InStock: true, Unit: "piece"},
		{ID: "prod-facewash", Name: "Nivea Face Wash", Description: "Deep cleansing face wash", Price: 4.99, Image: "🧴", CategoryID: "cat-personal", InStock: true, Unit: "piece"},
	}
	return categories, products
}
