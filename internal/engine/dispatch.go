package engine

import (
	"bytes"
	"context"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/protocol"
)

// Dispatch decodes req, runs the operation and encodes the result.
//
// Unknown selectors yield 404, malformed bodies 400 and backend failures
// 500. Absent results are successful empty responses.
func (i *Instance) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	ctx = i.logContext(ctx)
	op, err := domain.ParseOp(string(req.Op))
	if err != nil {
		i.logger.DebugContext(ctx, "unknown operation", "op", req.Op)
		return protocol.Fail(err)
	}

	resp := i.dispatch(ctx, op, req.Key, req.Body)
	if resp.Success() {
		i.logger.DebugContext(ctx, "dispatch", "op", op, "key", req.Key, "status", resp.Status)
	} else {
		i.logger.DebugContext(ctx, "dispatch failed", "op", op, "key", req.Key, "status", resp.Status, "code", resp.Error.Code)
	}
	return resp
}

func (i *Instance) dispatch(ctx context.Context, op domain.Op, key string, body []byte) *protocol.Response {
	switch op {
	case domain.OpGet:
		v, err := i.Get(ctx, key)
		return valueResponse(v, err)

	case domain.OpSet:
		var v domain.Value
		if err := protocol.DecodeBody(body, &v); err != nil {
			return protocol.Fail(err)
		}
		return voidResponse(i.Set(ctx, key, v))

	case domain.OpGetAndSet:
		var v domain.Value
		if err := protocol.DecodeBody(body, &v); err != nil {
			return protocol.Fail(err)
		}
		prev, err := i.GetAndSet(ctx, key, v)
		return valueResponse(prev, err)

	case domain.OpDelete:
		return voidResponse(i.Delete(ctx, key))

	case domain.OpGetKeysByPrefix:
		keys, err := i.GetKeysByPrefix(ctx, key)
		return resultResponse(keys, err)

	case domain.OpGetMany:
		var keys []string
		if err := protocol.DecodeBody(body, &keys); err != nil {
			return protocol.Fail(err)
		}
		values, err := i.GetMany(ctx, keys)
		return resultResponse(values, err)

	case domain.OpIncrement, domain.OpDecrement:
		delta, err := decodeDelta(body)
		if err != nil {
			return protocol.Fail(err)
		}
		var n int64
		if op == domain.OpIncrement {
			n, err = i.Increment(ctx, key, delta)
		} else {
			n, err = i.Decrement(ctx, key, delta)
		}
		return resultResponse(n, err)

	case domain.OpSetContains:
		var item string
		if err := protocol.DecodeBody(body, &item); err != nil {
			return protocol.Fail(err)
		}
		ok, err := i.SetContains(ctx, key, item)
		return resultResponse(ok, err)

	case domain.OpSetAdd, domain.OpSetRemove:
		var items []string
		if err := protocol.DecodeBody(body, &items); err != nil {
			return protocol.Fail(err)
		}
		if op == domain.OpSetAdd {
			return voidResponse(i.SetAdd(ctx, key, items))
		}
		return voidResponse(i.SetRemove(ctx, key, items))

	case domain.OpSetMembers:
		members, err := i.SetMembers(ctx, key)
		return resultResponse(members, err)

	case domain.OpClearAll:
		return voidResponse(i.ClearAll(ctx))

	case domain.OpQueuePush:
		return voidResponse(i.QueuePush(ctx, key, nil))

	case domain.OpQueuePop:
		v, err := i.QueuePop(ctx, key)
		return valueResponse(v, err)

	case domain.OpQueueCount:
		n, err := i.QueueCount(ctx, key)
		return resultResponse(n, err)
	}

	return protocol.Fail(domain.ErrUnknownOperation.WithDetails(string(op)))
}

// decodeDelta reads the optional increment/decrement delta. An empty body means 1.
func decodeDelta(body []byte) (int64, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return 1, nil
	}
	var delta int64
	if err := protocol.DecodeBody(body, &delta); err != nil {
		return 0, err
	}
	return delta, nil
}

func valueResponse(v domain.Value, err error) *protocol.Response {
	if err != nil {
		return protocol.Fail(err)
	}
	if v.IsAbsent() {
		return protocol.Empty()
	}
	return protocol.OK(v)
}

func resultResponse(v any, err error) *protocol.Response {
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.OK(v)
}

func voidResponse(err error) *protocol.Response {
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.Empty()
}
