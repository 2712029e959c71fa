package inventory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportExcel streams the aggregated stock view as an .xlsx workbook
func (h *Handler) ExportExcel(c *gin.Context) {
	groups, names, err := h.load(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}
	rows := buildRows(groups, names)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Stock"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Product", "Unit", "Client Scope", "Available", "Demand", "Net Available", "Stock Value", "Avg Unit Cost", "Last Received"}
	for i, head := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, head)
	}

	for i, row := range rows {
		scope := "Generic"
		if row.ClientName != "" {
			scope = row.ClientName
		} else if row.ClientID != nil {
			scope = row.ClientID.String()
		}
		lastReceived := ""
		if row.LastReceivedAt != nil {
			lastReceived = row.LastReceivedAt.Format("2006-01-02 15:04")
		}
		values := []interface{}{
			row.ProductName,
			row.Unit,
			scope,
			row.Available.InexactFloat64(),
			row.Demand.InexactFloat64(),
			row.NetAvailable.InexactFloat64(),
			row.TotalValue.InexactFloat64(),
			row.AvgUnitCost.InexactFloat64(),
			lastReceived,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("stock-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write workbook"})
	}
}
