package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/guyvdb/gestioneau/service"
)

// Alerts writes the alert headers clients use to show notifications:
// X-<app>-alert carries a translation key and X-<app>-params its argument.
type Alerts struct {
	AppName string
}

func (a Alerts) alert(w http.ResponseWriter, key, param string) {
	w.Header().Set("X-"+a.AppName+"-alert", key)
	w.Header().Set("X-"+a.AppName+"-params", url.QueryEscape(param))
}

func (a Alerts) Created(w http.ResponseWriter, entityName string, id int64) {
	a.alert(w, a.AppName+"."+entityName+".created", strconv.FormatInt(id, 10))
}

func (a Alerts) Updated(w http.ResponseWriter, entityName string, id int64) {
	a.alert(w, a.AppName+"."+entityName+".updated", strconv.FormatInt(id, 10))
}

func (a Alerts) Deleted(w http.ResponseWriter, entityName string, id int64) {
	a.alert(w, a.AppName+"."+entityName+".deleted", strconv.FormatInt(id, 10))
}

// Failure sets X-<app>-error to "error.<key>" and names the entity in the
// params header.
func (a Alerts) Failure(w http.ResponseWriter, entityName, errorKey string) {
	w.Header().Set("X-"+a.AppName+"-error", "error."+errorKey)
	w.Header().Set("X-"+a.AppName+"-params", entityName)
}

// paginationHeaders sets X-Total-Count and, for paged requests, a Link header
// with first, prev, next and last relations.
func paginationHeaders(w http.ResponseWriter, r *http.Request, p service.Pageable, total int64) {
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	if !p.Paged() {
		return
	}

	lastPage := 0
	if total > 0 {
		lastPage = int((total - 1) / int64(p.Size))
	}

	links := make([]string, 0, 4)
	if p.Page < lastPage {
		links = append(links, pageLink(r, p.Page+1, p.Size, "next"))
	}
	if p.Page > 0 && p.Page <= lastPage+1 {
		links = append(links, pageLink(r, p.Page-1, p.Size, "prev"))
	}
	links = append(links, pageLink(r, lastPage, p.Size, "last"))
	links = append(links, pageLink(r, 0, p.Size, "first"))
	w.Header().Set("Link", strings.Join(links, ","))
}

func pageLink(r *http.Request, page, size int, rel string) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	u.RawQuery = q.Encode()
	u.Scheme, u.Host = "", ""
	return fmt.Sprintf("<%s>; rel=\"%s\"", u.String(), rel)
}
