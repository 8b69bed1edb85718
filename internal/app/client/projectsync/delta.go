package projectsync

import "sort"

// Delta - действия над сущностями одного типа
type Delta struct {
	ToUpload         []int
	ToDownload       []int
	ToDeleteLocally  []int
	ToDeleteRemotely []int
}

// Empty сообщает, что синхронизировать нечего
func (d Delta) Empty() bool {
	return len(d.ToUpload) == 0 && len(d.ToDownload) == 0 &&
		len(d.ToDeleteLocally) == 0 && len(d.ToDeleteRemotely) == 0
}

// ComputeDelta сравнивает локальные и серверные хэши (id -> hash).
// Id с разными хэшами попадает и в выгрузку, и в загрузку: выгрузка идет первой,
// и сервер либо примет ее, либо вернет конфликт.
func ComputeDelta(local, server map[int]string, localDeleted, serverDeleted []int) Delta {
	var d Delta

	deletedOnServer := toSet(serverDeleted)
	deletedLocally := toSet(localDeleted)

	for id, hash := range local {
		remote, ok := server[id]
		switch {
		case !ok && deletedOnServer[id]:
			d.ToDeleteLocally = append(d.ToDeleteLocally, id)
		case !ok || remote != hash:
			d.ToUpload = append(d.ToUpload, id)
		}
	}

	for id, hash := range server {
		lh, ok := local[id]
		switch {
		case !ok && deletedLocally[id]:
			d.ToDeleteRemotely = append(d.ToDeleteRemotely, id)
		case !ok || lh != hash:
			d.ToDownload = append(d.ToDownload, id)
		}
	}

	sort.Ints(d.ToUpload)
	sort.Ints(d.ToDownload)
	sort.Ints(d.ToDeleteLocally)
	sort.Ints(d.ToDeleteRemotely)
	return d
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
