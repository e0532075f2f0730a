/*
 * Copyright (c) 2020 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package private

import (
	"sort"

	"github.com/ortuman/civet/model"
	"github.com/ortuman/civet/xmpp"
)

func parseBookmarks(storage xmpp.XElement) []model.Bookmark {
	if storage == nil {
		return nil
	}
	var ret []model.Bookmark
	for _, conf := range storage.Elements().Children("conference") {
		bm := model.Bookmark{
			JID:      conf.Attributes().Get("jid"),
			Name:     conf.Attributes().Get("name"),
			Autojoin: isTruthy(conf.Attributes().Get("autojoin")),
		}
		if len(bm.JID) == 0 {
			continue
		}
		if nick := conf.Elements().Child("nick"); nick != nil {
			bm.Nick = nick.Text()
		}
		if password := conf.Elements().Child("password"); password != nil {
			bm.Password = password.Text()
		}
		ret = append(ret, bm)
	}
	return ret
}

func bookmarksElement(bookmarks []model.Bookmark) *xmpp.Element {
	storage := xmpp.NewElementNamespace("storage", bookmarksNamespace)
	for _, bm := range bookmarks {
		conf := xmpp.NewElementName("conference")
		conf.SetAttribute("jid", bm.JID)
		if len(bm.Name) > 0 {
			conf.SetAttribute("name", bm.Name)
		}
		if bm.Autojoin {
			conf.SetAttribute("autojoin", "1")
		}
		if len(bm.Nick) > 0 {
			nick := xmpp.NewElementName("nick")
			nick.SetText(bm.Nick)
			conf.AppendElement(nick)
		}
		if len(bm.Password) > 0 {
			password := xmpp.NewElementName("password")
			password.SetText(bm.Password)
			conf.AppendElement(password)
		}
		storage.AppendElement(conf)
	}
	return storage
}

func parseRosterNotes(storage xmpp.XElement) map[string]model.RosterNote {
	ret := map[string]model.RosterNote{}
	if storage == nil {
		return ret
	}
	for _, note := range storage.Elements().Children("note") {
		contactJID := note.Attributes().Get("jid")
		if len(contactJID) == 0 {
			continue
		}
		ret[contactJID] = model.RosterNote{
			JID:   contactJID,
			Note:  note.Text(),
			Date:  note.Attributes().Get("cdate"),
			MDate: note.Attributes().Get("mdate"),
		}
	}
	return ret
}

func rosterNotesElement(notes map[string]model.RosterNote) *xmpp.Element {
	keys := make([]string, 0, len(notes))
	for k := range notes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	storage := xmpp.NewElementNamespace("storage", rosterNotesNamespace)
	for _, k := range keys {
		n := notes[k]
		note := xmpp.NewElementName("note")
		note.SetAttribute("jid", n.JID)
		if len(n.Date) > 0 {
			note.SetAttribute("cdate", n.Date)
		}
		if len(n.MDate) > 0 {
			note.SetAttribute("mdate", n.MDate)
		}
		note.SetText(n.Note)
		storage.AppendElement(note)
	}
	return storage
}

func isTruthy(val string) bool {
	return val == "1" || val == "true"
}
