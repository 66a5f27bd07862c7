package utils

import (
	"fmt"
	"strings"
	"time"
)

var MonthNames = []string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var monthShort = []string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// MonthLabel renders "Mar/2024".
func MonthLabel(t time.Time) string {
	short := monthShort[t.Month()-1]
	return fmt.Sprintf("%s/%d", strings.ToUpper(short[:1])+short[1:], t.Year())
}

func MonthName(m time.Month) string {
	return MonthNames[m-1]
}

// MonthKey renders "2024-03".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
