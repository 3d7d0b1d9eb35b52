package memory

// Demo returns a small transaction and mapping pair for offline runs.
func Demo() (transactions, mapping *Store) {
	transactions = New("transactions",
		[]string{"Date", "Title", "Category", "Type", "Amount"},
		[][]string{
			{"1/1/2025", "Salary", "Income", "Actual", "4,200.00"},
			{"1/3/2025", "Rent", "Mortgage", "Actual", "1,500.00"},
			{"1/3/2025", "Rent", "Mortgage", "Expected", "1,500.00"},
			{"1/8/2025", "Groceries", "Food", "Actual", "$412.30"},
			{"1/8/2025", "Groceries", "Food", "Expected", "$400.00"},
			{"1/15/2025", "Brokerage", "Investment", "Actual", "500"},
			{"1/20/2025", "Cinema", "Leisure", "Actual", "38.50"},
			{"2/1/2025", "Salary", "Income", "Actual", "4,200.00"},
			{"2/3/2025", "Rent", "Mortgage", "Actual", "1,500.00"},
			{"2/9/2025", "Groceries", "Food", "Actual", "$455.10"},
			{"2/9/2025", "Groceries", "Food", "Expected", "$400.00"},
			{"2/14/2025", "Dinner", "Leisure", "Actual", "96.00"},
			{"2/14/2025", "Fun money", "Leisure", "Expected", "150.00"},
			{"2/28/2025", "Monthly total", "Total", "Actual", "6,751.10"},
			{"3/1/2025", "Salary", "Income", "Actual", "4,200.00"},
			{"3/3/2025", "Rent", "Mortgage", "Actual", "1,500.00"},
			{"3/7/2025", "Groceries", "Food", "Actual", "$380.75"},
			{"3/12/2025", "Train", "Transport", "Actual", "64.20"},
			{"3/12/2025", "Transit", "Transport", "Expected", "80.00"},
			{"3/30/2025", "Savings transfer", "Savings", "Actual", "300"},
		})
	mapping = New("mapping",
		[]string{"Category", "CategoryGroup"},
		[][]string{
			{"Income", "Income"},
			{"Mortgage", "Needs"},
			{"Food", "Needs"},
			{"Transport", "Needs"},
			{"Leisure", "Wants"},
			{"Investment", "Investment"},
			{"Savings", "Savings"},
		})
	return transactions, mapping
}
