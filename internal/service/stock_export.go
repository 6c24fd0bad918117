package service

import (
	"context"
	"fmt"
	"time"

	"salesledger/internal/model"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const stockLogSheet = "StockLog"

var stockLogHeaders = []string{"Date", "Type", "Quantity", "Before", "After", "Reference", "User", "Note"}

// StockLogExport is a rendered workbook plus its download name.
type StockLogExport struct {
	Filename string
	File     *excelize.File
}

// ExportStockLogs renders the product's full stock trail, oldest first.
func (s *stockService) ExportStockLogs(ctx context.Context, productID uuid.UUID) (*StockLogExport, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, lookupError(err, "product", productID)
	}
	logs, err := s.stockLogRepo.AllByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock logs: %w", err)
	}

	f, err := buildStockLogWorkbook(product, logs)
	if err != nil {
		return nil, err
	}
	return &StockLogExport{
		Filename: fmt.Sprintf("stock-log-%s-%s.xlsx", product.SKU, time.Now().Format("20060102")),
		File:     f,
	}, nil
}

func buildStockLogWorkbook(product *model.Product, logs []model.StockLog) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", stockLogSheet); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("%s - %s (%s)", product.SKU, product.Name, product.Unit)
	if err := f.SetCellValue(stockLogSheet, "A1", title); err != nil {
		return nil, err
	}
	for i, h := range stockLogHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(stockLogSheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, l := range logs {
		user := ""
		if l.User != nil {
			user = l.User.Username
		}
		row := []interface{}{
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			string(l.Type),
			l.Quantity,
			l.BeforeQty,
			l.AfterQty,
			l.Reference,
			user,
			l.Note,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(stockLogSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	return f, nil
}
