package services

import (
	"context"
	"errors"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
)

type taxonomyStoreStub struct {
	listCategoriesFn          func(ctx context.Context) ([]types.Category, error)
	listMainStandardsFn       func(ctx context.Context) ([]types.MainStandard, error)
	listSubStandardsFn        func(ctx context.Context) ([]types.SubStandard, error)
	listActionsFn             func(ctx context.Context, scope ports.Scope) ([]types.Action, error)
	listSubStandardStatusesFn func(ctx context.Context, organizationID string) ([]types.SubStandardStatus, error)
	getActionFn               func(ctx context.Context, scope ports.Scope, actionID string) (types.Action, error)
	getSubStandardFn          func(ctx context.Context, subStandardID string) (types.SubStandard, error)
	getSubStandardStatusFn    func(ctx context.Context, organizationID string, subStandardID string) (types.SubStandardStatus, error)
	insertCategoryFn          func(ctx context.Context, c types.Category) error
	insertMainStandardFn      func(ctx context.Context, m types.MainStandard) error
	insertSubStandardFn       func(ctx context.Context, s types.SubStandard) error
	upsertSubStandardStatusFn func(ctx context.Context, st types.SubStandardStatus) error
	insertActionFn            func(ctx context.Context, a types.Action) error
	updateActionFn            func(ctx context.Context, scope ports.Scope, a types.Action) error
	deleteActionFn            func(ctx context.Context, scope ports.Scope, actionID string) error
	countDescendantsFn        func(ctx context.Context, nodeKind string, nodeID string) (int, error)
	deleteNodeCascadeFn       func(ctx context.Context, nodeKind string, nodeID string) error
}

func (s taxonomyStoreStub) ListCategories(ctx context.Context) ([]types.Category, error) {
	if s.listCategoriesFn == nil {
		return nil, nil
	}
	return s.listCategoriesFn(ctx)
}

func (s taxonomyStoreStub) ListMainStandards(ctx context.Context) ([]types.MainStandard, error) {
	if s.listMainStandardsFn == nil {
		return nil, nil
	}
	return s.listMainStandardsFn(ctx)
}

func (s taxonomyStoreStub) ListSubStandards(ctx context.Context) ([]types.SubStandard, error) {
	if s.listSubStandardsFn == nil {
		return nil, nil
	}
	return s.listSubStandardsFn(ctx)
}

func (s taxonomyStoreStub) ListActions(ctx context.Context, scope ports.Scope) ([]types.Action, error) {
	if s.listActionsFn == nil {
		return nil, nil
	}
	return s.listActionsFn(ctx, scope)
}

func (s taxonomyStoreStub) ListSubStandardStatuses(ctx context.Context, organizationID string) ([]types.SubStandardStatus, error) {
	if s.listSubStandardStatusesFn == nil {
		return nil, nil
	}
	return s.listSubStandardStatusesFn(ctx, organizationID)
}

func (s taxonomyStoreStub) GetAction(ctx context.Context, scope ports.Scope, actionID string) (types.Action, error) {
	if s.getActionFn == nil {
		return types.Action{}, errors.New("GetAction not stubbed")
	}
	return s.getActionFn(ctx, scope, actionID)
}

func (s taxonomyStoreStub) GetSubStandard(ctx context.Context, subStandardID string) (types.SubStandard, error) {
	if s.getSubStandardFn == nil {
		return types.SubStandard{}, errors.New("GetSubStandard not stubbed")
	}
	return s.getSubStandardFn(ctx, subStandardID)
}

func (s taxonomyStoreStub) GetSubStandardStatus(ctx context.Context, organizationID string, subStandardID string) (types.SubStandardStatus, error) {
	if s.getSubStandardStatusFn == nil {
		return types.SubStandardStatus{}, errors.New("GetSubStandardStatus not stubbed")
	}
	return s.getSubStandardStatusFn(ctx, organizationID, subStandardID)
}

func (s taxonomyStoreStub) InsertCategory(ctx context.Context, c types.Category) error {
	if s.insertCategoryFn == nil {
		return nil
	}
	return s.insertCategoryFn(ctx, c)
}

func (s taxonomyStoreStub) InsertMainStandard(ctx context.Context, m types.MainStandard) error {
	if s.insertMainStandardFn == nil {
		return nil
	}
	return s.insertMainStandardFn(ctx, m)
}

func (s taxonomyStoreStub) InsertSubStandard(ctx context.Context, sub types.SubStandard) error {
	if s.insertSubStandardFn == nil {
		return nil
	}
	return s.insertSubStandardFn(ctx, sub)
}

func (s taxonomyStoreStub) UpsertSubStandardStatus(ctx context.Context, st types.SubStandardStatus) error {
	if s.upsertSubStandardStatusFn == nil {
		return nil
	}
	return s.upsertSubStandardStatusFn(ctx, st)
}

func (s taxonomyStoreStub) InsertAction(ctx context.Context, a types.Action) error {
	if s.insertActionFn == nil {
		return nil
	}
	return s.insertActionFn(ctx, a)
}

func (s taxonomyStoreStub) UpdateAction(ctx context.Context, scope ports.Scope, a types.Action) error {
	if s.updateActionFn == nil {
		return nil
	}
	return s.updateActionFn(ctx, scope, a)
}

func (s taxonomyStoreStub) DeleteAction(ctx context.Context, scope ports.Scope, actionID string) error {
	if s.deleteActionFn == nil {
		return nil
	}
	return s.deleteActionFn(ctx, scope, actionID)
}

func (s taxonomyStoreStub) CountDescendantInstanceData(ctx context.Context, nodeKind string, nodeID string) (int, error) {
	if s.countDescendantsFn == nil {
		return 0, nil
	}
	return s.countDescendantsFn(ctx, nodeKind, nodeID)
}

func (s taxonomyStoreStub) DeleteNodeCascade(ctx context.Context, nodeKind string, nodeID string) error {
	if s.deleteNodeCascadeFn == nil {
		return nil
	}
	return s.deleteNodeCascadeFn(ctx, nodeKind, nodeID)
}
