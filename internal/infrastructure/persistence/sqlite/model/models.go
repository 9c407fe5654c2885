package model

// All lists every table the application migrates, in dependency order.
func All() []any {
	return []any{
		&WorkOrder{},
		&WorkOrderPart{},
		&WorkOrderExecution{},
		&WorkOrderStatusHistory{},
		&CatalogPart{},
		&KeyValue{},
	}
}
