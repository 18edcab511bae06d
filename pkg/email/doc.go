// Package email delivers billing notices to account owners.
//
// Notifier implements billing.Notifier. It renders each billing.Notice into a
// small HTML document with templ and hands it to an EmailSender. Two senders
// ship with the package: the Postmark client for production and DevSender,
// which writes messages to a local directory. NewSender picks one from Config.
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//	    return err
//	}
//	if sender != nil {
//	    opts = append(opts, billing.WithNotifier(email.NewNotifier(sender, cfg)))
//	}
//
// Charge amounts are formatted with FormatAmount, which honours the minor-unit
// scale of the currency (two decimals for USD, none for JPY).
package email
