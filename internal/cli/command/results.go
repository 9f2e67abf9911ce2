package command

import (
	"strconv"

	"github.com/yndnr/rolloutkv/internal/cli/output"
	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// ValueResult is one key with its scalar value.
type ValueResult struct {
	Key   string       `json:"key"`
	Value domain.Value `json:"value"`
}

// Table implements output.Tabular.
func (r ValueResult) Table() *output.Table {
	return output.NewTable("KEY", "VALUE", "KIND").AddRow(r.Key, displayValue(r.Value), r.Value.Kind().String())
}

// ValuesResult is the result of mget, in request order.
type ValuesResult []ValueResult

// Table implements output.Tabular.
func (r ValuesResult) Table() *output.Table {
	t := output.NewTable("KEY", "VALUE", "KIND")
	for _, v := range r {
		t.AddRow(v.Key, displayValue(v.Value), v.Value.Kind().String())
	}
	return t
}

// GetSetResult reports the value replaced by getset.
type GetSetResult struct {
	Key      string       `json:"key"`
	Previous domain.Value `json:"previous"`
	Value    domain.Value `json:"value"`
}

// Table implements output.Tabular.
func (r GetSetResult) Table() *output.Table {
	return output.NewTable("KEY", "PREVIOUS", "VALUE").AddRow(r.Key, displayValue(r.Previous), displayValue(r.Value))
}

// CounterResult is the value of a counter after incr or decr.
type CounterResult struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// Table implements output.Tabular.
func (r CounterResult) Table() *output.Table {
	return output.NewTable("KEY", "VALUE").AddRow(r.Key, strconv.FormatInt(r.Value, 10))
}

// KeysResult lists the keys under a prefix.
type KeysResult struct {
	Prefix string   `json:"prefix"`
	Keys   []string `json:"keys"`
}

// Table implements output.Tabular.
func (r KeysResult) Table() *output.Table {
	t := output.NewTable("KEY")
	for _, k := range r.Keys {
		t.AddRow(k)
	}
	return t
}

// MembershipResult reports whether member belongs to the set at key.
type MembershipResult struct {
	Key      string `json:"key"`
	Member   string `json:"member"`
	IsMember bool   `json:"is_member"`
}

// Table implements output.Tabular.
func (r MembershipResult) Table() *output.Table {
	return output.NewTable("KEY", "MEMBER", "IS_MEMBER").AddRow(r.Key, r.Member, strconv.FormatBool(r.IsMember))
}

// MembersResult lists the members of the set at key.
type MembersResult struct {
	Key     string   `json:"key"`
	Members []string `json:"members"`
}

// Table implements output.Tabular.
func (r MembersResult) Table() *output.Table {
	t := output.NewTable("MEMBER")
	for _, m := range r.Members {
		t.AddRow(m)
	}
	return t
}

// StatusResult acknowledges a write.
type StatusResult struct {
	Op     string `json:"op"`
	Key    string `json:"key,omitempty"`
	Status string `json:"status"`
}

// Table implements output.Tabular.
func (r StatusResult) Table() *output.Table {
	return output.NewTable("OP", "KEY", "STATUS").AddRow(r.Op, r.Key, r.Status)
}

func displayValue(v domain.Value) string {
	if v.IsAbsent() {
		return "(absent)"
	}
	return v.String()
}
