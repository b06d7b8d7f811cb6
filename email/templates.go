package email

import (
	"bytes"
	"html/template"

	"shop-svc/models"

	"github.com/shopspring/decimal"
)

var funcs = template.FuncMap{
	"price": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

const layoutHead = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="margin:0;padding:0;font-family:'Helvetica Neue',Helvetica,Arial,sans-serif;background-color:#ffffff;">
<table width="100%" cellpadding="0" cellspacing="0"><tr><td align="center" style="padding:40px 20px;">
<table width="600" cellpadding="0" cellspacing="0" style="border:2px solid #000000;">
<tr><td align="center" style="padding:40px 20px;background-color:#000000;">
<h1 style="margin:0;color:#ffffff;font-size:32px;letter-spacing:2px;">{{.Brand}}</h1>
</td></tr>
<tr><td style="padding:40px 30px;">`

const layoutFoot = `</td></tr>
<tr><td align="center" style="padding:30px 20px;background-color:#000000;">
<p style="margin:0;color:#ffffff;font-size:14px;">Need help? Reply to this email.</p>
</td></tr>
</table></td></tr></table>
</body>
</html>`

var welcomeTmpl = template.Must(template.New("welcome").Funcs(funcs).Parse(layoutHead + `
<h2 style="margin:0 0 20px 0;font-size:24px;">Welcome, {{.Name}}!</h2>
<p style="font-size:16px;line-height:1.6;">Thank you for joining {{.Brand}}. Your account has been created and you can start shopping right away.</p>
` + layoutFoot))

var orderTmpl = template.Must(template.New("order").Funcs(funcs).Parse(layoutHead + `
<h2 style="margin:0 0 20px 0;font-size:24px;">Thank you for your order{{if .Name}}, {{.Name}}{{end}}!</h2>
<p style="font-size:16px;">Order #{{.Order.OrderID}} has been received and is awaiting payment.</p>
<table width="100%" cellpadding="0" cellspacing="0">
{{range .Order.Items}}<tr>
<td style="padding:15px 0;border-bottom:1px solid #e0e0e0;"><b>{{.ProductName}}</b><br>Quantity: {{.Quantity}} &times; {{price .UnitPrice}}</td>
<td align="right" style="padding:15px 0;border-bottom:1px solid #e0e0e0;"><b>{{price .Subtotal}}</b></td>
</tr>{{end}}
<tr><td style="padding:20px 0;"><b>Total</b></td><td align="right" style="padding:20px 0;"><b>{{price .Order.TotalAmount}}</b></td></tr>
</table>
{{with .Order.ShippingAddress}}<h3 style="font-size:18px;">Shipping address</h3>
<p style="font-size:14px;line-height:1.6;">{{.Street}}<br>{{.City}}, {{.State}} {{.ZipCode}}<br>{{.Country}}</p>{{end}}
` + layoutFoot))

type templateData struct {
	Title string
	Brand string
	Name  string
	Order *models.OrderSummary
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
