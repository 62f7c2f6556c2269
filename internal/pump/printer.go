package pump

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"tickpump.com/pkg/xerr"
)

var (
	// DefaultWriter 打印到 stdout，是否着色跟随终端能力
	DefaultWriter = NewPrinter(os.Stdout, !color.NoColor)
	// DefaultErrorHook 打印 "ERROR: <message>" 到 stderr
	DefaultErrorHook = NewErrorPrinter(os.Stderr)
)

var half = decimal.New(5, -1)

// Delta 用十进制计算 price-last，保留 2 位小数。
// 恰好在中间时向 +∞ 取整：-0.125 -> -0.12，0.125 -> 0.13
func Delta(last, price float64) decimal.Decimal {
	d := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(last))
	return d.Shift(2).Add(half).Floor().Shift(-2)
}

// NewPrinter 输出形如 "BTC-USD: 101.5 (+1.5)" 的一行。
// 涨为绿色并带 "+"，跌为红色，持平为 "0"。
func NewPrinter(w io.Writer, colored bool) Writer {
	up := color.New(color.FgGreen)
	down := color.New(color.FgRed)
	if colored {
		up.EnableColor()
		down.EnableColor()
	} else {
		up.DisableColor()
		down.DisableColor()
	}

	return func(_ context.Context, pc Context, p Payload) error {
		price, ok := Price(p)
		if !ok {
			return xerr.ErrNoPrice
		}
		symbol, _ := p[KeySymbol].(string)
		if symbol == "" {
			symbol = pc.Symbol
		}

		d := Delta(pc.LastPrice, price)
		change := d.String()
		switch d.Sign() {
		case 1:
			change = up.Sprint("+" + change)
		case -1:
			change = down.Sprint(change)
		}

		_, err := fmt.Fprintf(w, "%s: %s (%s)\n", symbol, strconv.FormatFloat(price, 'f', -1, 64), change)
		return err
	}
}

func NewErrorPrinter(w io.Writer) ErrorHook {
	return func(err error) {
		fmt.Fprintf(w, "ERROR: %v\n", err)
	}
}
