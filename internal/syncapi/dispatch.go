// Package syncapi applies actions replayed by the offline sync agent.
package syncapi

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/events"
	"gooms-backend/internal/finance"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"
	"gooms-backend/internal/offline"
	"gooms-backend/internal/production"
	"gooms-backend/internal/sales"

	"gorm.io/gorm"
)

// Tables accepted from the agent.
const (
	TableStockMovements        = "stock_movements"
	TableSales                 = "sales"
	TableProductionBatches     = "production_batches"
	TableFinancialTransactions = "financial_transactions"
	TableProducts              = "products"
)

// Applied is what one action changed. Events are published after commit.
type Applied struct {
	Result interface{}
	Events []events.Event
}

type applyFunc func(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error)

type route struct {
	roles []models.UserRole
	apply applyFunc
}

var routes = map[string]map[offline.ActionType]route{
	TableStockMovements: {
		offline.ActionCreate: {
			roles: []models.UserRole{models.RoleManager, models.RoleProduction},
			apply: createMovement,
		},
	},
	TableSales: {
		offline.ActionCreate: {
			roles: []models.UserRole{models.RoleManager, models.RoleSales},
			apply: createSale,
		},
	},
	TableProductionBatches: {
		offline.ActionCreate: {
			roles: []models.UserRole{models.RoleManager, models.RoleProduction},
			apply: createBatch,
		},
		offline.ActionUpdate: {
			roles: []models.UserRole{models.RoleManager, models.RoleProduction},
			apply: updateBatch,
		},
	},
	TableFinancialTransactions: {
		offline.ActionCreate: {
			roles: []models.UserRole{models.RoleFinance},
			apply: createTransaction,
		},
		offline.ActionUpdate: {
			roles: []models.UserRole{models.RoleFinance},
			apply: updateTransaction,
		},
		offline.ActionDelete: {
			roles: []models.UserRole{models.RoleFinance},
			apply: deleteTransaction,
		},
	},
	TableProducts: {
		offline.ActionCreate: {
			roles: []models.UserRole{models.RoleManager},
			apply: createProduct,
		},
		offline.ActionUpdate: {
			roles: []models.UserRole{models.RoleManager},
			apply: updateProduct,
		},
	},
}

func lookup(table string, typ offline.ActionType) (route, bool) {
	byType, ok := routes[table]
	if !ok {
		return route{}, false
	}
	r, ok := byType[typ]
	return r, ok
}

// decode unmarshals the payload into out and runs the same validation as
// the matching online endpoint.
func decode(a offline.Action, out interface{}) error {
	if len(a.Payload) == 0 {
		return httpx.Invalid("payload is required")
	}
	if err := json.Unmarshal(a.Payload, out); err != nil {
		return httpx.Invalid("invalid payload: " + err.Error())
	}
	if err := httpx.Validate(out); err != nil {
		return httpx.Invalid(httpx.ToFiber(err, "invalid payload").Error())
	}
	return nil
}

func recordID(a offline.Action) (uint, error) {
	id, err := strconv.ParseUint(a.RecordID, 10, 64)
	if err != nil || id == 0 {
		return 0, httpx.Invalid(fmt.Sprintf("invalid record_id %q", a.RecordID))
	}
	return uint(id), nil
}

// -----------------------------------------------------------------------------
// Handlers per table
// -----------------------------------------------------------------------------

func createMovement(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	var body inventory.CreateMovementRequest
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	in, err := body.ToInput(actor.UserID)
	if err != nil {
		return nil, err
	}
	in.Reference = "offline:" + a.ID

	res, err := inventory.ApplyMovement(tx, in)
	if err != nil {
		return nil, err
	}
	if err := actor.Record(tx, audit.EntityStockMovement, res.Movement.ID, models.AuditActionCreate,
		string(in.Reason)+" "+res.Product.SKU, nil, res.Movement); err != nil {
		return nil, err
	}

	out := &Applied{Result: res.Movement}
	if res.LowStock {
		out.Events = append(out.Events, inventory.LowStockEvent(res))
	}
	return out, nil
}

func createSale(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	var body sales.SaleInput
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	sale, res, err := sales.RecordSale(tx, body, actor)
	if err != nil {
		return nil, err
	}
	out := &Applied{Result: sale, Events: []events.Event{sales.RecordedEvent(sale)}}
	if res.LowStock {
		out.Events = append(out.Events, inventory.LowStockEvent(res))
	}
	return out, nil
}

func createBatch(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	var body production.BatchInput
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	b, err := production.CreateBatch(tx, body, actor)
	if err != nil {
		return nil, err
	}
	return &Applied{Result: b}, nil
}

func updateBatch(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	id, err := recordID(a)
	if err != nil {
		return nil, err
	}
	var body production.StatusChange
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	b, res, err := production.SetStatus(tx, id, body, actor)
	if err != nil {
		return nil, err
	}
	out := &Applied{Result: b}
	if b.Status == models.BatchCompleted {
		out.Events = append(out.Events, production.CompletedEvent(b))
	}
	if res != nil && res.LowStock {
		out.Events = append(out.Events, inventory.LowStockEvent(res))
	}
	return out, nil
}

func createTransaction(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	var body finance.TransactionInput
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	t, err := finance.CreateTransaction(tx, body, actor)
	if err != nil {
		return nil, err
	}
	return &Applied{Result: t}, nil
}

func updateTransaction(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	id, err := recordID(a)
	if err != nil {
		return nil, err
	}
	var body finance.TransactionPatch
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	t, err := finance.UpdateTransaction(tx, id, body, actor)
	if err != nil {
		return nil, err
	}
	return &Applied{Result: t}, nil
}

func deleteTransaction(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	id, err := recordID(a)
	if err != nil {
		return nil, err
	}
	if err := finance.DeleteTransaction(tx, id, actor); err != nil {
		return nil, err
	}
	return &Applied{Result: map[string]uint{"deleted": id}}, nil
}

func createProduct(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	var body inventory.ProductInput
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	p, err := inventory.CreateProduct(tx, body, actor)
	if err != nil {
		return nil, err
	}
	return &Applied{Result: p}, nil
}

func updateProduct(tx *gorm.DB, a offline.Action, actor audit.Actor) (*Applied, error) {
	id, err := recordID(a)
	if err != nil {
		return nil, err
	}
	var body inventory.ProductPatch
	if err := decode(a, &body); err != nil {
		return nil, err
	}
	p, err := inventory.UpdateProduct(tx, id, body, actor)
	if err != nil {
		return nil, err
	}
	return &Applied{Result: p}, nil
}
